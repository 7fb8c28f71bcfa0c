package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ChainPull/internal/di"
	"ChainPull/internal/usecase"
	"ChainPull/pkg/config"
	"ChainPull/pkg/logger"
	"ChainPull/pkg/server"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "chainpull",
		Short: "Option chain snapshot pipeline",
		Long: `chainpull scrapes near-the-money option chains for a ticker universe,
stores one snapshot per ticker and cycle, and serves them back over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")

	// withApp loads config, wires the application, runs fn and shuts down.
	withApp := func(fn func(ctx context.Context, app *server.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWithEnv(configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			app, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			app.Logger().Info("starting",
				logger.String("command", cmd.Name()),
				logger.String("env", cfg.Environment),
				logger.String("namespace", cfg.Namespace),
				logger.String("backend", cfg.Backend.Type))

			runErr := fn(cmd.Context(), app)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return errors.Join(runErr, app.Shutdown(ctx))
		}
	}

	scrape := func(force bool) func(context.Context, *server.App) error {
		return func(ctx context.Context, app *server.App) error {
			_, err := app.Scrape(ctx, force)
			if errors.Is(err, usecase.ErrMarketClosed) {
				app.Logger().Info("market closed, nothing enqueued")
				return nil
			}
			return err
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "scrape",
			Short: "Enqueue one cycle for every non-quarantined ticker while the market is open",
			Args:  cobra.NoArgs,
			RunE:  withApp(scrape(false)),
		},
		&cobra.Command{
			Use:   "scrape-force",
			Short: "Enqueue one cycle for every ticker, ignoring quarantine and market hours",
			Args:  cobra.NoArgs,
			RunE:  withApp(scrape(true)),
		},
		&cobra.Command{
			Use:   "populate-exprs",
			Short: "Resolve and cache the expiration of every ticker",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, app *server.App) error {
				_, err := app.Maintenance.PopulateExpirations(ctx)
				return err
			}),
		},
		newPurgeCmd(withApp),
		&cobra.Command{
			Use:   "audit-blacklist",
			Short: "Re-scrape quarantined tickers and release the healthy ones",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, app *server.App) error {
				_, err := app.Maintenance.AuditQuarantine(ctx)
				return err
			}),
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Run the scrape worker pool",
			Args:  cobra.NoArgs,
			RunE: withApp(func(_ context.Context, app *server.App) error {
				return app.RunWorker()
			}),
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run workers, the query API and the cron schedule",
			Args:  cobra.NoArgs,
			RunE: withApp(func(_ context.Context, app *server.App) error {
				return app.RunServe()
			}),
		},
		&cobra.Command{
			Use:   "ingest",
			Short: "Consume snapshot events from Kafka into ClickHouse",
			Args:  cobra.NoArgs,
			RunE: withApp(func(_ context.Context, app *server.App) error {
				return app.RunIngest()
			}),
		},
	)
	return root
}

func newPurgeCmd(withApp func(func(context.Context, *server.App) error) func(*cobra.Command, []string) error) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "purge-exprs",
		Short: "Drop the expiration cache once a cached expiration has arrived",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, app *server.App) error {
			purged, err := app.Maintenance.PurgeExpirations(ctx, force)
			if err == nil && purged {
				app.Logger().Info("expiration cache purged", logger.Bool("force", force))
			}
			return err
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "purge unconditionally")
	return cmd
}
