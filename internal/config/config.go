// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

// Package config loads server configuration from a YAML file, command-line
// flags, and the DATABASE_URL environment variable. Precedence from lowest
// to highest: defaults, config file, environment, flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default values applied before any file or flag overrides.
const (
	DefaultListenAddr  = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9101"
	DefaultSessionTTL  = 24 * time.Hour
	DefaultLogFormat   = "json"
)

// Config holds the full server configuration.
type Config struct {
	ListenAddr   string        `koanf:"listen_addr"`
	MetricsAddr  string        `koanf:"metrics_addr"`
	DatabaseURL  string        `koanf:"database_url"`
	SessionTTL   time.Duration `koanf:"session_ttl"`
	CookieSecure bool          `koanf:"cookie_secure"`
	LogFormat    string        `koanf:"log_format"`
	InMemory     bool          `koanf:"in_memory"`
	ReapInterval time.Duration `koanf:"reap_interval"`
	TLSCertFile  string        `koanf:"tls_cert_file"`
	TLSKeyFile   string        `koanf:"tls_key_file"`
}

// Load builds a Config from the given YAML file (optional, empty path skips
// it) and the provided flag set. Flags override file values; DATABASE_URL in
// the environment overrides the file but not an explicit --database-url flag.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"listen_addr":   DefaultListenAddr,
		"metrics_addr":  DefaultMetricsAddr,
		"session_ttl":   DefaultSessionTTL,
		"cookie_secure": false,
		"log_format":    DefaultLogFormat,
		"in_memory":     false,
		"reap_interval": time.Duration(0),
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		if err := k.Set("database_url", url); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", "database_url").Wrap(err)
		}
	}

	if flags != nil {
		// Flag names use dashes; map them onto the underscore config keys.
		provider := posflag.ProviderWithValue(flags, ".", k, func(key, value string) (string, interface{}) {
			return strings.ReplaceAll(key, "-", "_"), value
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("log_format", c.LogFormat).
			Errorf("log_format must be json or text")
	}
	if c.SessionTTL <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("session_ttl", c.SessionTTL.String()).
			Errorf("session_ttl must be positive")
	}
	if c.ReapInterval < 0 {
		return oops.Code("CONFIG_INVALID").
			With("reap_interval", c.ReapInterval.String()).
			Errorf("reap_interval must not be negative")
	}
	if !c.InMemory && c.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database_url is required unless in_memory is set")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return oops.Code("CONFIG_INVALID").Errorf("tls_cert_file and tls_key_file must be set together")
	}
	return nil
}

// TLSEnabled reports whether the API server should serve HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// RegisterFlags adds the configuration flags to the given flag set. Flag
// names map to config keys with dashes in place of underscores.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("listen-addr", DefaultListenAddr, "HTTP API listen address")
	flags.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("database-url", "", "PostgreSQL connection URL")
	flags.Duration("session-ttl", DefaultSessionTTL, "session lifetime")
	flags.Bool("cookie-secure", false, "set the Secure attribute on session cookies")
	flags.String("log-format", DefaultLogFormat, "log format (json or text)")
	flags.Bool("in-memory", false, "use in-memory storage instead of PostgreSQL")
	flags.Duration("reap-interval", 0, "expired-session sweep interval (0 = disabled)")
	flags.String("tls-cert-file", "", "TLS certificate file (enables HTTPS)")
	flags.String("tls-key-file", "", "TLS private key file")
}
