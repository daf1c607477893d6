package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/webtrail-dev/webtrail/pkg/storage"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell for browsing stored telemetry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(cmd.Context())
		if err != nil {
			return err
		}
		return runShell(cmd.Context(), store)
	},
}

var shellCommands = []string{"sessions", "steps", "show", "delete", "info", "help", "exit"}

func runShell(ctx context.Context, store *storage.Manager) error {
	line := liner.NewLiner()
	defer func() { _ = line.Close() }()

	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) (out []string) {
		for _, c := range shellCommands {
			if strings.HasPrefix(c, prefix) {
				out = append(out, c)
			}
		}
		return out
	})

	historyFile := filepath.Join(os.TempDir(), ".webtrail_history")
	if f, err := os.Open(historyFile); err == nil { // #nosec G304 - fixed temp path
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil { // #nosec G304
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Println("webtrail shell — type 'help' for commands")
	for {
		input, err := line.Prompt("webtrail> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == "exit" || input == "quit" {
			return nil
		}
		if err := execShellCommand(ctx, store, strings.Fields(input)); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func execShellCommand(ctx context.Context, store *storage.Manager, fields []string) error {
	switch fields[0] {
	case "help":
		fmt.Println("commands:")
		fmt.Println("  sessions                   list stored session IDs")
		fmt.Println("  steps <session>            list step IDs for a session")
		fmt.Println("  show <session> <step>      summarize one step's artifacts")
		fmt.Println("  delete <session> [step]    delete a session or a single step")
		fmt.Println("  info                       show storage configuration")
		fmt.Println("  exit                       leave the shell")
		return nil

	case "sessions":
		sessions, err := store.ListSessions(ctx)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("(no sessions)")
		}
		for _, id := range sessions {
			fmt.Println(id)
		}
		return nil

	case "steps":
		if len(fields) != 2 {
			return fmt.Errorf("usage: steps <session>")
		}
		steps, err := store.ListSteps(ctx, fields[1])
		if err != nil {
			return err
		}
		if len(steps) == 0 {
			fmt.Println("(no steps)")
		}
		for _, id := range steps {
			fmt.Println(id)
		}
		return nil

	case "show":
		if len(fields) != 3 {
			return fmt.Errorf("usage: show <session> <step>")
		}
		data, err := store.RetrieveStepData(ctx, fields[1], fields[2])
		if err != nil {
			return err
		}
		fmt.Printf("html:       %d bytes\n", len(data.HTML))
		fmt.Printf("screenshot: %d bytes\n", len(data.Screenshot))
		if data.Action != nil {
			fmt.Printf("action:     %s\n", data.Action)
		}
		if data.Metadata != nil {
			fmt.Printf("metadata:   %s\n", data.Metadata)
		}
		return nil

	case "delete":
		switch len(fields) {
		case 2:
			return store.DeleteSession(ctx, fields[1])
		case 3:
			return store.DeleteStep(ctx, fields[1], fields[2])
		default:
			return fmt.Errorf("usage: delete <session> [step]")
		}

	case "info":
		info := store.Info()
		fmt.Printf("backend:    %s\n", info.Backend)
		if info.Bucket != "" {
			fmt.Printf("bucket:     %s\n", info.Bucket)
			fmt.Printf("region:     %s\n", info.Region)
		}
		fmt.Printf("local path: %s\n", info.LocalBasePath)
		return nil

	default:
		return fmt.Errorf("unknown command %q, type 'help'", fields[0])
	}
}
