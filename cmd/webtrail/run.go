package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webtrail-dev/webtrail/internal/orchestrator"
	"github.com/webtrail-dev/webtrail/pkg/browser"
	"github.com/webtrail-dev/webtrail/pkg/collector"
	"github.com/webtrail-dev/webtrail/pkg/workflow"
)

var runSessions int

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow in one or more browser sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := workflow.Load(args[0])
		if err != nil {
			return fmt.Errorf("load workflow: %w", err)
		}

		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}

		mgr := browser.NewManager()
		if err := mgr.Initialize(); err != nil {
			return fmt.Errorf("initialize browser runtime: %w", err)
		}
		defer func() {
			if err := mgr.Close(); err != nil {
				logger.Warn("browser runtime shutdown failed", "error", err)
			}
		}()

		sessionCfg := browser.SessionConfig{
			Headless:       *cfg.Browser.Headless,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
			TimeoutMS:      cfg.Browser.TimeoutMS,
		}
		factory := func() (orchestrator.BrowserSession, error) {
			return mgr.NewSession(sessionCfg)
		}

		col := collector.New(store, cfg.CollectorSettings(), logger)
		o := orchestrator.New(factory, col, logger)

		sessions := runSessions
		if sessions == 0 {
			sessions = cfg.Orchestrator.Sessions
		}

		results, err := o.Run(cmd.Context(), wf, sessions)
		if err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.Status == orchestrator.StatusFailed {
				failed++
				fmt.Fprintf(os.Stderr, "session %s failed after %d steps: %v\n",
					r.SessionID, r.StepsExecuted, r.Err)
				continue
			}
			fmt.Printf("session %s completed: %d steps, %d records\n",
				r.SessionID, r.StepsExecuted, len(r.Records))
		}
		if failed == len(results) {
			return fmt.Errorf("all %d sessions failed", failed)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().IntVarP(&runSessions, "sessions", "n", 0, "number of concurrent sessions (default from config)")
}
