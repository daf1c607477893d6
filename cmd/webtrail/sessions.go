package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/webtrail-dev/webtrail/pkg/storage"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored session IDs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		sessions, err := store.ListSessions(cmd.Context())
		if err != nil {
			return err
		}
		for _, id := range sessions {
			fmt.Println(id)
		}
		return nil
	},
}

var sessionsStepsCmd = &cobra.Command{
	Use:   "steps <session-id>",
	Short: "List step IDs stored for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		steps, err := store.ListSteps(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, id := range steps {
			fmt.Println(id)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete every artifact stored for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		if err := store.DeleteSession(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("session %s deleted\n", args[0])
		return nil
	},
}

var stepCmd = &cobra.Command{
	Use:   "step",
	Short: "Inspect and manage individual steps",
}

var stepShowCmd = &cobra.Command{
	Use:   "show <session-id> <step-id>",
	Short: "Print the stored record of one step",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		data, err := store.RetrieveStepData(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}

		out := map[string]any{
			"session_id":     args[0],
			"step_id":        args[1],
			"html_bytes":     len(data.HTML),
			"screenshot_ref": "",
		}
		if data.Screenshot != nil {
			out["screenshot_ref"] = store.Location(args[0], args[1], storage.KindScreenshot)
		}
		if data.Action != nil {
			out["action"] = json.RawMessage(data.Action)
		}
		if data.Metadata != nil {
			out["metadata"] = json.RawMessage(data.Metadata)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var stepDeleteCmd = &cobra.Command{
	Use:   "delete <session-id> <step-id>",
	Short: "Delete every artifact stored for one step",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		if err := store.DeleteStep(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("step %s/%s deleted\n", args[0], args[1])
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the effective storage configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(store.Info())
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsStepsCmd, sessionsDeleteCmd)
	stepCmd.AddCommand(stepShowCmd, stepDeleteCmd)
}
