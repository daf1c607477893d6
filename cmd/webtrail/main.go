// Command webtrail captures browser interaction telemetry: it runs YAML
// workflows in headless browser sessions, stores per-step artifacts in S3 or
// on the local filesystem, and materializes the store into JSONL datasets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/webtrail-dev/webtrail/internal/observability"
	"github.com/webtrail-dev/webtrail/pkg/config"
	"github.com/webtrail-dev/webtrail/pkg/storage"
)

// Version information (set via ldflags)
var Version = "dev"

var (
	configFile string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "webtrail",
	Short:   "Browser interaction telemetry capture and storage",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; ignore absence.
		_ = godotenv.Load()

		logger = newLogger(logLevel)
		slog.SetDefault(logger)

		var err error
		if configFile != "" {
			cfg, err = config.Load(configFile)
		} else {
			cfg = config.Default()
		}
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		if err := observability.InitFromEnv(); err != nil {
			logger.Warn("tracing init failed, continuing without traces", "error", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := observability.Shutdown(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	},
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newStore builds the storage manager from the loaded configuration.
func newStore(ctx context.Context) (*storage.Manager, error) {
	opts := cfg.StorageOptions()
	opts.Logger = logger
	return storage.NewManager(ctx, opts)
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("WEBTRAIL_CONFIG"), "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		runCmd,
		workflowCmd,
		sessionsCmd,
		stepCmd,
		infoCmd,
		datasetCmd,
		shellCmd,
		serveCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
