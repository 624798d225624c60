// cmd/certctl/migrate.go
package main

import (
	"context"
	"fmt"

	"certificate-workers/internal/common/config"
	"certificate-workers/internal/common/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the certificate database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPostgres(cmd.Context(), opts, func(ctx context.Context, pg *database.PostgresClient) error {
				if err := database.Migrate(ctx, pg.DB); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied state of every migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPostgres(cmd.Context(), opts, func(ctx context.Context, pg *database.PostgresClient) error {
				return database.MigrationStatus(ctx, pg.DB)
			})
		},
	})
	return cmd
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.configPath != "" {
		return config.LoadFromFile(opts.configPath)
	}
	cfg, _, err := config.Load()
	return cfg, err
}

func withPostgres(ctx context.Context, opts *rootOptions, fn func(context.Context, *database.PostgresClient) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if err := pg.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return fn(ctx, pg)
}
