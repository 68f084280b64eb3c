package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/database"
	"github.com/certprep/certprep-backend/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "certprep-admin",
		Short:         "Administrative tasks for the CertPrep backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newCreateUserCmd())
	return cmd
}

// connect loads configuration and opens the database pool shared by every
// subcommand.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, zerolog.Logger, error) {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		return nil, nil, log, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	return cfg, pool, log, nil
}
