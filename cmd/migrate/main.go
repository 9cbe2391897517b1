package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/doctor-availability-scheduling/internal/config"
	"github.com/hackgods/doctor-availability-scheduling/internal/db"
	"github.com/hackgods/doctor-availability-scheduling/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply or roll back the scheduling schema",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(downCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withMigrator loads config, connects and hands fn a ready migrator.
func withMigrator(ctx context.Context, fn func(*db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.StorageDriver != config.StoragePostgres {
		return fmt.Errorf("migrations need STORAGE_DRIVER=postgres, got %q", cfg.StorageDriver)
	}

	logger := logging.New("migrate", cfg.Env, cfg.LogLevel)

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connCtx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		return err
	}
	defer pool.Close()

	mg, err := db.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := mg.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing migrator")
		}
	}()

	return fn(mg)
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(mg *db.Migrator) error {
				return mg.Up()
			})
		},
	}
}

func downCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			return withMigrator(cmd.Context(), func(mg *db.Migrator) error {
				return mg.Down(steps)
			})
		},
	}
	cmd.Flags().Int("steps", 1, "Number of migrations to roll back")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(mg *db.Migrator) error {
				version, dirty, ok, err := mg.Version()
				if err != nil {
					return err
				}
				out := zerolog.New(cmd.OutOrStdout())
				if !ok {
					out.Log().Msg("no migrations applied")
					return nil
				}
				out.Log().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
				return nil
			})
		},
	}
}
