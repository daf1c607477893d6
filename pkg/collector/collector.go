// Package collector captures per-step interaction telemetry during workflow
// execution and persists it through the storage layer. Each collected step
// gets a generated UUID, a gzip-compressed DOM snapshot, the raw screenshot
// bytes, an action descriptor, and a metadata record, written best-effort: a
// failed artifact is logged and skipped, never aborting the step.
package collector

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/webtrail-dev/webtrail/pkg/observability"
	"github.com/webtrail-dev/webtrail/pkg/storage"
)

// Config controls which artifacts are captured and how fast.
type Config struct {
	// Per-artifact collection toggles. The zero value of Config disables
	// everything; use DefaultConfig for the usual all-on capture.
	CollectHTML       bool
	CollectScreenshot bool
	CollectAction     bool
	CollectMetadata   bool

	// StepsPerSecond throttles capture across all sessions sharing this
	// collector. Zero means unlimited.
	StepsPerSecond float64
	// Burst is the rate limiter burst size (default 1 when throttled).
	Burst int
}

// DefaultConfig captures all four artifact kinds, unthrottled.
func DefaultConfig() Config {
	return Config{
		CollectHTML:       true,
		CollectScreenshot: true,
		CollectAction:     true,
		CollectMetadata:   true,
	}
}

// Action describes the interaction performed at a step, serialized into the
// step's action.json artifact.
type Action struct {
	Type     string `json:"type"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
}

// StepMetadata is the context record serialized into metadata.json.
type StepMetadata struct {
	SessionID string `json:"session_id"`
	StepID    string `json:"step_id"`
	TaskID    string `json:"task_id,omitempty"`
	URL       string `json:"url"`
	Timestamp string `json:"ts"`
}

// StepInput is what the caller supplies per captured step.
type StepInput struct {
	SessionID string
	// TaskID ties the step to the workflow run that produced it.
	TaskID string
	URL    string
	Action Action
	// HTML is the raw DOM snapshot; the collector compresses it.
	HTML string
	// Screenshot is the raw image payload, stored as-is.
	Screenshot []byte
}

// StepRecord is the ledger entry produced for each collected step.
type StepRecord struct {
	StepID    string                          `json:"step_id"`
	SessionID string                          `json:"session_id"`
	TaskID    string                          `json:"task_id,omitempty"`
	URL       string                          `json:"url"`
	Timestamp string                          `json:"ts"`
	Action    Action                          `json:"action"`
	Locations map[storage.ArtifactKind]string `json:"locations,omitempty"`
}

// Collector captures step telemetry into a storage manager.
// Safe for concurrent use by many sessions.
type Collector struct {
	store  *storage.Manager
	cfg    Config
	limit  *rate.Limiter
	logger *slog.Logger

	mu     sync.Mutex
	ledger []StepRecord
}

// New creates a collector writing through store.
func New(store *storage.Manager, cfg Config, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	var limit *rate.Limiter
	if cfg.StepsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limit = rate.NewLimiter(rate.Limit(cfg.StepsPerSecond), burst)
	}
	return &Collector{
		store:  store,
		cfg:    cfg,
		limit:  limit,
		logger: logger,
	}
}

// CollectStep stores the artifacts of one interaction step and records a
// ledger entry. It returns an error only when the capture as a whole fails
// (rate-limit cancellation, invalid IDs, or every artifact write failing);
// individual artifact failures are logged and reflected as missing locations.
func (c *Collector) CollectStep(ctx context.Context, in StepInput) (StepRecord, error) {
	if c.limit != nil {
		if err := c.limit.Wait(ctx); err != nil {
			return StepRecord{}, fmt.Errorf("capture rate limit: %w", err)
		}
	}

	started := time.Now()
	stepID := uuid.New().String()
	timestamp := started.UTC().Format(time.RFC3339Nano)
	logger := c.logger.With("session_id", in.SessionID, "step_id", stepID, "url", in.URL)

	var artifacts storage.StepArtifacts
	if c.cfg.CollectHTML && in.HTML != "" {
		compressed, err := gzipBytes([]byte(in.HTML))
		if err != nil {
			logger.Warn("html compression failed, skipping artifact", "error", err)
		} else {
			artifacts.HTML = compressed
		}
	}
	if c.cfg.CollectScreenshot && len(in.Screenshot) > 0 {
		artifacts.Screenshot = in.Screenshot
	}
	if c.cfg.CollectAction {
		payload, err := json.Marshal(in.Action)
		if err != nil {
			logger.Warn("action serialization failed, skipping artifact", "error", err)
		} else {
			artifacts.Action = payload
		}
	}
	if c.cfg.CollectMetadata {
		meta := StepMetadata{
			SessionID: in.SessionID,
			StepID:    stepID,
			TaskID:    in.TaskID,
			URL:       in.URL,
			Timestamp: timestamp,
		}
		payload, err := json.Marshal(meta)
		if err != nil {
			logger.Warn("metadata serialization failed, skipping artifact", "error", err)
		} else {
			artifacts.Metadata = payload
		}
	}

	locations, err := c.store.StoreStepData(ctx, in.SessionID, stepID, artifacts)
	if err != nil {
		return StepRecord{}, fmt.Errorf("store step %s/%s: %w", in.SessionID, stepID, err)
	}
	recordWriteMetrics(artifacts, locations, time.Since(started))

	record := StepRecord{
		StepID:    stepID,
		SessionID: in.SessionID,
		TaskID:    in.TaskID,
		URL:       in.URL,
		Timestamp: timestamp,
		Action:    in.Action,
		Locations: locations,
	}

	c.mu.Lock()
	c.ledger = append(c.ledger, record)
	c.mu.Unlock()

	observability.RecordStepCollected(in.Action.Type, time.Since(started))
	logger.Info("step collected", "artifacts", len(locations))
	return record, nil
}

// Ledger returns a copy of every step record collected so far.
func (c *Collector) Ledger() []StepRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]StepRecord, len(c.ledger))
	copy(out, c.ledger)
	return out
}

// recordWriteMetrics emits one write sample per attempted artifact. An
// artifact that was attempted but has no stored location failed.
func recordWriteMetrics(artifacts storage.StepArtifacts, locations map[storage.ArtifactKind]string, elapsed time.Duration) {
	attempted := map[storage.ArtifactKind][]byte{
		storage.KindHTML:       artifacts.HTML,
		storage.KindScreenshot: artifacts.Screenshot,
		storage.KindAction:     artifacts.Action,
		storage.KindMetadata:   artifacts.Metadata,
	}
	for kind, payload := range attempted {
		if payload == nil {
			continue
		}
		status := "error"
		if _, ok := locations[kind]; ok {
			status = "ok"
		}
		observability.RecordArtifactWrite(string(kind), status, len(payload), elapsed)
	}
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
