// Package dataset materializes raw step records from the storage layer into
// JSONL training data. It reads only; the capture pipeline is the sole
// writer. Content filtering and statistics are deliberately out of scope.
package dataset

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/webtrail-dev/webtrail/pkg/observability"
	"github.com/webtrail-dev/webtrail/pkg/storage"
)

// gzipMagic identifies gzip-compressed HTML snapshots.
var gzipMagic = []byte{0x1f, 0x8b}

// Record is one JSONL line: the raw materialization of a single step.
type Record struct {
	SessionID     string          `json:"session_id"`
	StepID        string          `json:"step_id"`
	HTMLContent   string          `json:"html_content,omitempty"`
	ScreenshotRef string          `json:"screenshot_ref,omitempty"`
	Action        json.RawMessage `json:"action,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Builder walks sessions and steps through a storage manager and emits one
// JSON line per step.
type Builder struct {
	store  *storage.Manager
	logger *slog.Logger
}

// NewBuilder creates a dataset builder reading from store.
func NewBuilder(store *storage.Manager, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, logger: logger}
}

// Build writes every stored step as a JSON line to w and returns the number
// of records written. Steps whose artifacts are all absent are skipped with
// a log entry rather than emitted empty.
func (b *Builder) Build(ctx context.Context, w io.Writer) (int, error) {
	sessions, err := b.store.ListSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	enc := json.NewEncoder(w)
	written := 0
	for _, sessionID := range sessions {
		steps, err := b.store.ListSteps(ctx, sessionID)
		if err != nil {
			return written, fmt.Errorf("list steps for %s: %w", sessionID, err)
		}
		for _, stepID := range steps {
			record, ok, err := b.materialize(ctx, sessionID, stepID)
			if err != nil {
				return written, err
			}
			if !ok {
				b.logger.Warn("skipping step with no artifacts",
					"session_id", sessionID, "step_id", stepID)
				continue
			}
			if err := enc.Encode(record); err != nil {
				return written, fmt.Errorf("encode record %s/%s: %w", sessionID, stepID, err)
			}
			written++
		}
	}
	observability.RecordDatasetRecords(written)
	b.logger.Info("dataset built", "sessions", len(sessions), "records", written)
	return written, nil
}

// BuildFile writes the dataset to a JSONL file at path.
func (b *Builder) BuildFile(ctx context.Context, path string) (int, error) {
	f, err := os.Create(path) // #nosec G304 - caller-chosen output file
	if err != nil {
		return 0, fmt.Errorf("create dataset file: %w", err)
	}
	written, buildErr := b.Build(ctx, f)
	if closeErr := f.Close(); buildErr == nil && closeErr != nil {
		return written, fmt.Errorf("close dataset file: %w", closeErr)
	}
	return written, buildErr
}

func (b *Builder) materialize(ctx context.Context, sessionID, stepID string) (Record, bool, error) {
	data, err := b.store.RetrieveStepData(ctx, sessionID, stepID)
	if err != nil {
		return Record{}, false, fmt.Errorf("retrieve step %s/%s: %w", sessionID, stepID, err)
	}
	recordReadMetrics(data)
	if data.HTML == nil && data.Screenshot == nil && data.Action == nil && data.Metadata == nil {
		return Record{}, false, nil
	}

	record := Record{SessionID: sessionID, StepID: stepID}
	if data.HTML != nil {
		html, err := decodeHTML(data.HTML)
		if err != nil {
			b.logger.Warn("html decode failed, omitting from record",
				"session_id", sessionID, "step_id", stepID, "error", err)
		} else {
			record.HTMLContent = html
		}
	}
	if data.Screenshot != nil {
		record.ScreenshotRef = b.store.Location(sessionID, stepID, storage.KindScreenshot)
	}
	if data.Action != nil {
		record.Action = json.RawMessage(data.Action)
	}
	if data.Metadata != nil {
		record.Metadata = json.RawMessage(data.Metadata)
	}
	return record, true, nil
}

func recordReadMetrics(data storage.StepData) {
	present := map[storage.ArtifactKind][]byte{
		storage.KindHTML:       data.HTML,
		storage.KindScreenshot: data.Screenshot,
		storage.KindAction:     data.Action,
		storage.KindMetadata:   data.Metadata,
	}
	for kind, payload := range present {
		status := "absent"
		if payload != nil {
			status = "ok"
		}
		observability.RecordArtifactRead(string(kind), status)
	}
}

// decodeHTML transparently decompresses gzip snapshots; uncompressed
// payloads pass through unchanged.
func decodeHTML(payload []byte) (string, error) {
	if !bytes.HasPrefix(payload, gzipMagic) {
		return string(payload), nil
	}
	r, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer func() { _ = r.Close() }()
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
