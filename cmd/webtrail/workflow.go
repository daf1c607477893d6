package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/webtrail-dev/webtrail/pkg/workflow"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Create and check workflow definitions",
}

var workflowInitCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "Write a starter workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", path)
		}

		wf, err := workflow.NewBuilder("my-workflow").
			Navigate("https://example.com").
			WaitForSelector("h1").
			ExtractText("h1").
			WaitForTime(500 * time.Millisecond).
			Build()
		if err != nil {
			return err
		}
		if err := workflow.Save(wf, path); err != nil {
			return err
		}
		fmt.Printf("wrote starter workflow to %s\n", path)
		return nil
	},
}

var workflowCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate a workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, err := workflow.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("workflow %q is valid: %d steps\n", wf.Name, len(wf.Steps))
		return nil
	},
}

func init() {
	workflowCmd.AddCommand(workflowInitCmd, workflowCheckCmd)
}
