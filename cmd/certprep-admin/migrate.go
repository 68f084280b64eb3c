package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: "Applies or rolls back schema migrations. The schema embedded in the\n" +
			"binary is used unless --path points at a migrations directory.",
	}
	cmd.PersistentFlags().StringVar(&dir, "path", "", "read migrations from this directory instead of the embedded schema")

	// run opens a migrator for the configured database and hands it to fn.
	run := func(cmd *cobra.Command, fn func(*migrate.Migrate) (string, error)) error {
		cfg := config.Load()
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
		m, err := database.NewMigrator(cfg.DatabaseURL, dir)
		if err != nil {
			return err
		}
		defer m.Close()

		msg, err := fn(m)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, func(m *migrate.Migrate) (string, error) {
					if err := ignoreNoChange(m.Up()); err != nil {
						return "", fmt.Errorf("migrate up: %w", err)
					}
					return "Schema is up to date", nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, func(m *migrate.Migrate) (string, error) {
					if err := ignoreNoChange(m.Down()); err != nil {
						return "", fmt.Errorf("migrate down: %w", err)
					}
					return "All migrations rolled back", nil
				})
			},
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, or roll back when N is negative",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return run(cmd, func(m *migrate.Migrate) (string, error) {
					if err := ignoreNoChange(m.Steps(n)); err != nil {
						return "", fmt.Errorf("migrate steps: %w", err)
					}
					return fmt.Sprintf("Applied %d step(s)", n), nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, func(m *migrate.Migrate) (string, error) {
					version, dirty, err := m.Version()
					if errors.Is(err, migrate.ErrNilVersion) {
						return "No migrations applied", nil
					}
					if err != nil {
						return "", fmt.Errorf("read version: %w", err)
					}
					return fmt.Sprintf("Version %d (dirty: %t)", version, dirty), nil
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return run(cmd, func(m *migrate.Migrate) (string, error) {
					if err := m.Force(v); err != nil {
						return "", fmt.Errorf("force version: %w", err)
					}
					return fmt.Sprintf("Forced version to %d", v), nil
				})
			},
		},
	)
	return cmd
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
