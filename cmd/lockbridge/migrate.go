// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbridge Contributors

package main

import (
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lockbridge/lockbridge/internal/config"
	"github.com/lockbridge/lockbridge/internal/store"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending schema migrations against the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, down)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations (drops all data)")
	cmd.Flags().String("database-url", "", "PostgreSQL connection URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, down bool) error {
	databaseURL, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if databaseURL == "" {
		databaseURL = databaseURLFromEnvOrFile()
	}
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database URL is required (--database-url, DATABASE_URL, or config file)")
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if down {
		cmd.Println("Rolling back migrations...")
		if err := migrator.Down(); err != nil {
			return err
		}
		cmd.Println("Rollback completed successfully")
		return nil
	}

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	if dirty {
		cmd.Println("WARNING: schema is dirty; a migration failed partway through")
	}
	cmd.Printf("Migrations completed successfully (version %d)\n", version)
	return nil
}

// databaseURLFromEnvOrFile resolves the database URL from the config file or
// the DATABASE_URL environment variable, whichever the config layer finds.
func databaseURLFromEnvOrFile() string {
	cfg, err := config.Load(resolveConfigFile(), nil)
	if err != nil {
		// Config may legitimately be absent for migrate; the caller reports
		// the missing URL.
		return ""
	}
	return cfg.DatabaseURL
}
