// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

// Package tls generates and loads development TLS certificates for the
// lockbridge API server. Secure session cookies require HTTPS, so local
// deployments need a certificate even before a real one is provisioned.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// Certificate file names within a certs directory.
const (
	CACertFile     = "root-ca.crt"
	CAKeyFile      = "root-ca.key"
	ServerCertFile = "api.crt"
	ServerKeyFile  = "api.key"
)

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// ServerCert holds a server certificate and private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateCA creates a self-signed root CA for local development.
func GenerateCA() (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("TLS_KEY_GENERATE_FAILED").Wrap(err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, oops.Code("TLS_SERIAL_GENERATE_FAILED").Wrap(err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Lockbridge"},
			CommonName:   "Lockbridge Dev CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code("TLS_CA_CREATE_FAILED").Wrap(err)
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, oops.Code("TLS_CA_PARSE_FAILED").Wrap(err)
	}

	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateServerCert creates a server certificate signed by the CA.
// hosts is the set of DNS names and IP addresses the certificate covers;
// localhost and 127.0.0.1 are always included.
func GenerateServerCert(ca *CA, hosts ...string) (*ServerCert, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, oops.Code("TLS_KEY_GENERATE_FAILED").Wrap(err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, oops.Code("TLS_SERIAL_GENERATE_FAILED").Wrap(err)
	}

	dnsNames := []string{"localhost"}
	ipAddresses := []net.IP{net.ParseIP("127.0.0.1")}
	for _, host := range hosts {
		if ip := net.ParseIP(host); ip != nil {
			ipAddresses = append(ipAddresses, ip)
			continue
		}
		dnsNames = append(dnsNames, host)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Lockbridge"},
			CommonName:   "lockbridge-api",
		},
		NotBefore:   time.Now(),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:    dnsNames,
		IPAddresses: ipAddresses,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, oops.Code("TLS_CERT_CREATE_FAILED").Wrap(err)
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, oops.Code("TLS_CERT_PARSE_FAILED").Wrap(err)
	}

	return &ServerCert{Certificate: cert, PrivateKey: key}, nil
}

// SaveCertificates writes the CA and optionally a server certificate to
// certsDir as PEM files. Key files get 0600 permissions.
func SaveCertificates(certsDir string, ca *CA, serverCert *ServerCert) error {
	if err := os.MkdirAll(certsDir, 0o700); err != nil {
		return oops.Code("TLS_DIR_CREATE_FAILED").
			With("dir", certsDir).
			Wrap(err)
	}

	if err := saveCert(filepath.Join(certsDir, CACertFile), ca.Certificate); err != nil {
		return err
	}
	if err := saveKey(filepath.Join(certsDir, CAKeyFile), ca.PrivateKey); err != nil {
		return err
	}

	if serverCert != nil {
		if err := saveCert(filepath.Join(certsDir, ServerCertFile), serverCert.Certificate); err != nil {
			return err
		}
		if err := saveKey(filepath.Join(certsDir, ServerKeyFile), serverCert.PrivateKey); err != nil {
			return err
		}
	}

	return nil
}

// LoadCA loads an existing CA from certsDir.
func LoadCA(certsDir string) (*CA, error) {
	certPEM, err := os.ReadFile(filepath.Clean(filepath.Join(certsDir, CACertFile)))
	if err != nil {
		return nil, oops.Code("TLS_CA_READ_FAILED").Wrap(err)
	}
	keyPEM, err := os.ReadFile(filepath.Clean(filepath.Join(certsDir, CAKeyFile)))
	if err != nil {
		return nil, oops.Code("TLS_CA_READ_FAILED").Wrap(err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, oops.Code("TLS_CA_PARSE_FAILED").Errorf("failed to decode CA certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, oops.Code("TLS_CA_PARSE_FAILED").Wrap(err)
	}

	block, _ = pem.Decode(keyPEM)
	if block == nil {
		return nil, oops.Code("TLS_CA_PARSE_FAILED").Errorf("failed to decode CA key PEM")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, oops.Code("TLS_CA_PARSE_FAILED").Wrap(err)
	}

	return &CA{Certificate: cert, PrivateKey: key}, nil
}

func saveCert(path string, cert *x509.Certificate) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return oops.Code("TLS_CERT_WRITE_FAILED").With("path", path).Wrap(err)
	}

	if err := pem.Encode(f, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}); err != nil {
		_ = f.Close()
		return oops.Code("TLS_CERT_WRITE_FAILED").With("path", path).Wrap(err)
	}

	if err := f.Close(); err != nil {
		return oops.Code("TLS_CERT_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func saveKey(path string, key *ecdsa.PrivateKey) error {
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("TLS_KEY_WRITE_FAILED").With("path", path).Wrap(err)
	}

	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.Code("TLS_KEY_WRITE_FAILED").With("path", path).Wrap(err)
	}

	if err := pem.Encode(f, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		_ = f.Close()
		return oops.Code("TLS_KEY_WRITE_FAILED").With("path", path).Wrap(err)
	}

	if err := f.Close(); err != nil {
		return oops.Code("TLS_KEY_WRITE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
