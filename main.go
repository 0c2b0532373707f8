// Package main provides the smsflow command line: the API server, the send workers and migrations
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirphl/smsflow/config"
	"github.com/amirphl/smsflow/migrations"
	"github.com/amirphl/smsflow/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg    *config.ProductionConfig
	logger *zap.Logger

	noWorkers    bool
	migrateSteps int
)

var rootCmd = &cobra.Command{
	Use:   "smsflow",
	Short: "SMS campaign dispatch and reply tracking",
	Long: `smsflow sends templated SMS campaigns to uploaded contact lists and
attributes inbound replies to the campaign contact they answer.

Run without a subcommand to start the API server together with the
scheduler and the send workers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadProductionConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger, err = utils.NewLogger(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), runOptions{api: true, workers: true})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the scheduler and the send workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), runOptions{api: true, workers: !noWorkers})
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run only the scheduler and the send workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), runOptions{workers: true})
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the embedded database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}

		url := cfg.Database.URL()
		switch direction {
		case "down":
			if err := migrations.Down(url, migrateSteps); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			logger.Info("Migrations rolled back", zap.Int("steps", migrateSteps))
		default:
			if err := migrations.Up(url); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			logger.Info("Migrations applied")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noWorkers, "no-workers", false, "run the API only, without the scheduler and send workers")
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back with down")

	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runServe builds the application, runs it until ctx is cancelled and shuts it down
func runServe(ctx context.Context, opts runOptions) error {
	app, err := initializeApplication(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	if app.router != nil {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			errCh <- app.router.Start(address)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err = <-errCh:
		logger.Error("Server stopped unexpectedly", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if shutdownErr := app.Shutdown(shutdownCtx); shutdownErr != nil {
		err = errors.Join(err, shutdownErr)
	}

	logger.Info("Stopped")
	return err
}
