package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/webtrail-dev/webtrail/pkg/observability"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve metrics and health endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}

		samplerCtx, stopSampler := context.WithCancel(cmd.Context())
		defer stopSampler()

		observability.InitMetrics()
		observability.StartRuntimeSampler(samplerCtx, 15*time.Second)
		checker := observability.InitHealthChecker()
		checker.RegisterCheck(observability.PingCheck())
		checker.RegisterCheck(observability.StorageCheck(func(ctx context.Context) error {
			_, err := store.ListSessions(ctx)
			return err
		}))

		port := servePort
		if port == 0 {
			port = cfg.Metrics.Port
		}

		srv := observability.NewServer(port)
		errChan := make(chan error, 1)
		go func() {
			logger.Info("metrics server listening", "port", port)
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("metrics server: %w", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errChan:
			return err
		case <-quit:
			logger.Info("shutting down")
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (default from config)")
}
