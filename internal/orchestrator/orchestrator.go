// Package orchestrator runs a workflow across a fleet of concurrent browser
// sessions, capturing telemetry for every executed step. Per-session
// failures are recorded as outcomes, never aborting sibling sessions, and
// every provisioned session is released on the way out.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	tracing "github.com/webtrail-dev/webtrail/internal/observability"
	"github.com/webtrail-dev/webtrail/pkg/collector"
	"github.com/webtrail-dev/webtrail/pkg/observability"
	"github.com/webtrail-dev/webtrail/pkg/workflow"
)

// BrowserSession is the slice of browser behavior the orchestrator needs.
// *browser.Session satisfies it.
type BrowserSession interface {
	ExecuteStep(step workflow.Step) error
	HTML() (string, error)
	Screenshot() ([]byte, error)
	URL() string
	Close() error
}

// SessionFactory provisions one browser session per workflow run.
type SessionFactory func() (BrowserSession, error)

// Status of one session's workflow run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result is the outcome of running the workflow in one browser session.
type Result struct {
	SessionID string
	TaskID    string
	Status    Status
	// StepsExecuted counts workflow steps that ran, successfully or not.
	StepsExecuted int
	Records       []collector.StepRecord
	Err           error
}

// Orchestrator fans a workflow out over N sessions.
type Orchestrator struct {
	factory   SessionFactory
	collector *collector.Collector
	logger    *slog.Logger
}

// New creates an orchestrator provisioning sessions from factory and
// capturing through c.
func New(factory SessionFactory, c *collector.Collector, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{factory: factory, collector: c, logger: logger}
}

// Run executes wf in numSessions concurrent browser sessions and returns one
// Result per session. Session failures land in their Result entry; Run
// itself errors only on invalid input.
func (o *Orchestrator) Run(ctx context.Context, wf *workflow.Workflow, numSessions int) ([]Result, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("workflow %q: %w", wf.Name, err)
	}
	if numSessions <= 0 {
		numSessions = 1
	}

	taskID := uuid.New().String()
	o.logger.Info("workflow run starting",
		"workflow", wf.Name, "task_id", taskID, "sessions", numSessions)

	ctx, span := tracing.StartSpan(ctx, "workflow.run", map[string]any{
		"workflow": wf.Name,
		"task_id":  taskID,
		"sessions": numSessions,
	})
	defer span.End()

	observability.SetActiveSessions(numSessions)
	defer observability.SetActiveSessions(0)

	results := make([]Result, numSessions)
	var g errgroup.Group
	for i := 0; i < numSessions; i++ {
		g.Go(func() error {
			results[i] = o.runSession(ctx, wf, taskID)
			return nil
		})
	}
	_ = g.Wait()

	completed := 0
	for _, r := range results {
		if r.Status == StatusCompleted {
			completed++
		}
	}
	o.logger.Info("workflow run finished",
		"workflow", wf.Name, "task_id", taskID,
		"completed", completed, "failed", numSessions-completed)
	return results, nil
}

func (o *Orchestrator) runSession(ctx context.Context, wf *workflow.Workflow, taskID string) Result {
	sessionID := uuid.New().String()
	result := Result{SessionID: sessionID, TaskID: taskID, Status: StatusCompleted}
	logger := o.logger.With("session_id", sessionID, "workflow", wf.Name)

	started := time.Now()
	defer func() {
		observability.RecordWorkflowSession(wf.Name, string(result.Status), time.Since(started))
	}()

	sess, err := o.factory()
	if err != nil {
		logger.Error("session provisioning failed", "error", err)
		result.Status = StatusFailed
		result.Err = fmt.Errorf("provision session: %w", err)
		return result
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("session release failed", "error", err)
		}
	}()

	for i, step := range wf.Steps {
		if err := ctx.Err(); err != nil {
			result.Status = StatusFailed
			result.Err = err
			return result
		}

		stepErr := sess.ExecuteStep(step)
		result.StepsExecuted++

		record, captureErr := o.captureStep(ctx, sess, sessionID, taskID, step)
		if captureErr != nil {
			logger.Warn("step capture failed", "step", i, "error", captureErr)
		} else {
			result.Records = append(result.Records, record)
		}

		if stepErr != nil {
			logger.Error("step execution failed", "step", i, "action", step.ActionType, "error", stepErr)
			result.Status = StatusFailed
			result.Err = fmt.Errorf("step %d (%s): %w", i, step.ActionType, stepErr)
			return result
		}
	}
	logger.Info("session completed", "steps", result.StepsExecuted)
	return result
}

// captureStep snapshots the page after a step and hands everything to the
// collector. Snapshot failures degrade to partial captures.
func (o *Orchestrator) captureStep(ctx context.Context, sess BrowserSession, sessionID, taskID string, step workflow.Step) (collector.StepRecord, error) {
	html, err := sess.HTML()
	if err != nil {
		o.logger.Warn("dom snapshot failed", "session_id", sessionID, "error", err)
	}
	screenshot, err := sess.Screenshot()
	if err != nil {
		o.logger.Warn("screenshot failed", "session_id", sessionID, "error", err)
	}

	return o.collector.CollectStep(ctx, collector.StepInput{
		SessionID: sessionID,
		TaskID:    taskID,
		URL:       sess.URL(),
		Action: collector.Action{
			Type:     step.ActionType,
			Selector: step.Selector,
			Text:     step.Text,
			URL:      step.URL,
		},
		HTML:       html,
		Screenshot: screenshot,
	})
}
