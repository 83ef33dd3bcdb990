// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lockbridge/lockbridge/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Lockbridge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lockbridge",
		Short: "Lockbridge - authentication and session service",
		Long: `Lockbridge is an authentication and session lifecycle service:
credential storage, cookie-based sessions, and password reset over HTTP.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newCertsCmd())

	return cmd
}

// resolveConfigFile returns the explicit --config path, or the XDG default
// when that file exists, or empty.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	if path := xdg.ConfigFile(); fileExists(path) {
		return path
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
