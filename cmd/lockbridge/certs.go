// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lockbridge/lockbridge/internal/tls"
	"github.com/lockbridge/lockbridge/internal/xdg"
)

// newCertsCmd creates the certs subcommand.
func newCertsCmd() *cobra.Command {
	var (
		dir   string
		hosts []string
	)

	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Generate development TLS certificates",
		Long: `Generate a local CA and a server certificate for serving the API over
HTTPS. An existing CA in the output directory is reused, so regenerating the
server certificate does not invalidate trust in the CA.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCerts(cmd, dir, hosts)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default: XDG config certs dir)")
	cmd.Flags().StringSliceVar(&hosts, "host", nil, "additional DNS names or IPs for the server certificate")

	return cmd
}

func runCerts(cmd *cobra.Command, dir string, hosts []string) error {
	if dir == "" {
		dir = xdg.CertsDir()
	}

	ca, err := tls.LoadCA(dir)
	if err != nil {
		ca, err = tls.GenerateCA()
		if err != nil {
			return err
		}
		cmd.Println("Generated new CA")
	} else {
		cmd.Println("Reusing existing CA")
	}

	serverCert, err := tls.GenerateServerCert(ca, hosts...)
	if err != nil {
		return err
	}

	if err := tls.SaveCertificates(dir, ca, serverCert); err != nil {
		return err
	}

	cmd.Printf("Certificates written to %s\n", dir)
	cmd.Printf("Serve with: lockbridge serve --tls-cert-file %s --tls-key-file %s\n",
		filepath.Join(dir, tls.ServerCertFile), filepath.Join(dir, tls.ServerKeyFile))
	return nil
}
