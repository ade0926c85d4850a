// Package cmd defines and implements the CLI commands for the catalog executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-catalog/internal/app"
	"github.com/JakeFAU/review-catalog/internal/config"
	"github.com/JakeFAU/review-catalog/internal/logging"
	"github.com/JakeFAU/review-catalog/internal/site"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a mock app during tests.
type App interface {
	Build(ctx context.Context, opts app.BuildOptions) (site.Report, error)
	Scrub(ctx context.Context, opts app.ScrubOptions) (app.ScrubReport, error)
	Serve(ctx context.Context) error
	Logger() *zap.Logger
	Close()
}

// newApp is the application factory. It's a variable so we can
// replace it with a mock factory in our tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.New(ctx, cfg, logger)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Compiles the review catalog into a static site.",
		Long: `catalog turns the record bundle into a static, crawlable site: listing
pages in several orders, per-record detail pages, facet pages, an obfuscated
client-side search index, a sitemap, robots.txt and an RSS feed.`,
		SilenceUsage: true,

		// Config and logging come first so the factory sees the final values.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			// Store the app instance in the context for subcommands to use.
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and CATALOG_* env vars apply without one)")

	cmd.AddCommand(newBuildCmd(), newScrubCmd(), newServeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		zap.L().Fatal("Command execution failed", zap.Error(err))
	}
}
