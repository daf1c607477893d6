package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// deleteConcurrency bounds parallel deletions during DeleteSession.
const deleteConcurrency = 8

// StepArtifacts carries the payloads to store for one step. A nil field
// means the artifact is omitted, which is not an error.
type StepArtifacts struct {
	HTML       []byte
	Screenshot []byte
	Action     []byte
	Metadata   []byte
}

func (a StepArtifacts) byKind() map[ArtifactKind][]byte {
	provided := make(map[ArtifactKind][]byte, 4)
	if a.HTML != nil {
		provided[KindHTML] = a.HTML
	}
	if a.Screenshot != nil {
		provided[KindScreenshot] = a.Screenshot
	}
	if a.Action != nil {
		provided[KindAction] = a.Action
	}
	if a.Metadata != nil {
		provided[KindMetadata] = a.Metadata
	}
	return provided
}

// StepData carries the payloads retrieved for one step. A nil field means
// the artifact is absent.
type StepData struct {
	HTML       []byte
	Screenshot []byte
	Action     []byte
	Metadata   []byte
}

// Info describes the effective storage configuration of a Manager, for
// observability. Bucket and Region are set only when the backend is remote.
type Info struct {
	Backend       BackendKind `json:"backend"`
	Bucket        string      `json:"bucket,omitempty"`
	Region        string      `json:"region,omitempty"`
	LocalBasePath string      `json:"local_base_path"`
}

// Manager is the public face of the storage layer. It owns exactly one
// resolved backend for its lifetime; there is no per-call backend switching.
// Manager is safe for concurrent use across many sessions and steps.
type Manager struct {
	backend Backend
	cfg     Config
	logger  *slog.Logger
}

// NewManager resolves the effective configuration from opts and the
// environment, selects the backend variant, and wraps it with the retry
// policy. Configuration problems fail here with a *ConfigError.
func NewManager(ctx context.Context, opts Options) (*Manager, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var backend Backend
	switch cfg.Backend {
	case BackendS3:
		backend, err = NewS3Backend(ctx, cfg.Bucket, cfg.Region)
		if err != nil {
			return nil, err
		}
		logger.Info("storage manager initialized",
			"backend", string(BackendS3), "bucket", cfg.Bucket, "region", cfg.Region)
	default:
		backend, err = NewFileBackend(cfg.LocalBasePath)
		if err != nil {
			return nil, err
		}
		logger.Info("storage manager initialized",
			"backend", string(BackendLocal), "base_path", cfg.LocalBasePath)
	}

	return &Manager{
		backend: WithRetry(backend, opts.Retry),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// NewManagerWithBackend builds a Manager around an already-constructed
// backend. Retry wrapping is the caller's choice. Intended for tests and for
// embedding the layer behind custom backends.
func NewManagerWithBackend(backend Backend, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{backend: backend, cfg: cfg, logger: logger}
}

// Info returns the effective storage configuration. No I/O.
func (m *Manager) Info() Info {
	info := Info{
		Backend:       m.cfg.Backend,
		LocalBasePath: m.cfg.LocalBasePath,
	}
	if m.cfg.Backend == BackendS3 {
		info.Bucket = m.cfg.Bucket
		info.Region = m.cfg.Region
	}
	return info
}

// Location returns the address an artifact would be stored at. Pure; no I/O.
func (m *Manager) Location(sessionID, stepID string, kind ArtifactKind) string {
	return m.backend.Location(Key(sessionID, stepID, kind))
}

// StoreStepData writes each provided artifact independently and concurrently.
// Writes are not transactional: a failed artifact does not roll back the
// others. The returned map holds the stored location of every artifact that
// succeeded; failed kinds are simply absent. An error is returned only when
// every requested write failed, as an *AggregateError. The capture pipeline
// favors retaining whatever survives over losing a whole step to one fault.
func (m *Manager) StoreStepData(ctx context.Context, sessionID, stepID string, artifacts StepArtifacts) (map[ArtifactKind]string, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, fmt.Errorf("session ID: %w", err)
	}
	if err := ValidateID(stepID); err != nil {
		return nil, fmt.Errorf("step ID: %w", err)
	}

	provided := artifacts.byKind()
	locations := make(map[ArtifactKind]string, len(provided))
	if len(provided) == 0 {
		m.logger.Debug("no artifacts provided for step", "session_id", sessionID, "step_id", stepID)
		return locations, nil
	}

	var mu sync.Mutex
	var failures []error
	var g errgroup.Group
	for kind, data := range provided {
		g.Go(func() error {
			key := Key(sessionID, stepID, kind)
			if err := m.backend.Put(ctx, key, data); err != nil {
				m.logger.Warn("artifact write failed",
					"session_id", sessionID, "step_id", stepID,
					"kind", string(kind), "key", key, "error", err)
				mu.Lock()
				failures = append(failures, fmt.Errorf("%s: %w", kind, err))
				mu.Unlock()
				return nil
			}
			mu.Lock()
			locations[kind] = m.backend.Location(key)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(locations) == 0 {
		return nil, &AggregateError{Op: "store step", SessionID: sessionID, StepID: stepID, Errs: failures}
	}
	m.logger.Info("step data stored",
		"session_id", sessionID, "step_id", stepID,
		"stored", len(locations), "failed", len(failures))
	return locations, nil
}

// RetrieveStepData fetches the four artifacts of a step independently and
// concurrently. A missing or failed component yields a nil field with a
// logged warning; it never aborts the other fetches.
func (m *Manager) RetrieveStepData(ctx context.Context, sessionID, stepID string) (StepData, error) {
	if err := ValidateID(sessionID); err != nil {
		return StepData{}, fmt.Errorf("session ID: %w", err)
	}
	if err := ValidateID(stepID); err != nil {
		return StepData{}, fmt.Errorf("step ID: %w", err)
	}

	var data StepData
	slots := map[ArtifactKind]*[]byte{
		KindHTML:       &data.HTML,
		KindScreenshot: &data.Screenshot,
		KindAction:     &data.Action,
		KindMetadata:   &data.Metadata,
	}

	var g errgroup.Group
	for kind, slot := range slots {
		g.Go(func() error {
			key := Key(sessionID, stepID, kind)
			payload, err := m.backend.Get(ctx, key)
			switch {
			case errors.Is(err, ErrObjectNotFound):
				m.logger.Debug("artifact absent",
					"session_id", sessionID, "step_id", stepID, "kind", string(kind))
			case err != nil:
				m.logger.Warn("artifact read failed",
					"session_id", sessionID, "step_id", stepID,
					"kind", string(kind), "key", key, "error", err)
			default:
				*slot = payload
			}
			return nil
		})
	}
	_ = g.Wait()

	return data, ctx.Err()
}

// ListSessions returns the IDs of every session with at least one stored
// artifact, sorted for stable output. A session has no existence record of
// its own, so the listing is derived from the key space.
func (m *Manager) ListSessions(ctx context.Context) ([]string, error) {
	keys, err := m.backend.List(ctx, "")
	if err != nil {
		m.logger.Warn("session listing failed", "error", err)
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return collectSegment(keys, 0), nil
}

// ListSteps returns the step IDs recorded under a session, sorted. A step is
// listed if and only if at least one of its artifact keys currently exists.
func (m *Manager) ListSteps(ctx context.Context, sessionID string) ([]string, error) {
	if err := ValidateID(sessionID); err != nil {
		return nil, fmt.Errorf("session ID: %w", err)
	}
	keys, err := m.backend.List(ctx, sessionID+"/")
	if err != nil {
		m.logger.Warn("step listing failed", "session_id", sessionID, "error", err)
		return nil, fmt.Errorf("list steps for session %s: %w", sessionID, err)
	}
	return collectSegment(keys, 1), nil
}

// DeleteStep removes the four well-known artifact keys of a step. It is
// idempotent: deleting an already-deleted or never-stored step succeeds.
func (m *Manager) DeleteStep(ctx context.Context, sessionID, stepID string) error {
	if err := ValidateID(sessionID); err != nil {
		return fmt.Errorf("session ID: %w", err)
	}
	if err := ValidateID(stepID); err != nil {
		return fmt.Errorf("step ID: %w", err)
	}

	var failures []error
	for _, kind := range Kinds {
		key := Key(sessionID, stepID, kind)
		if err := m.backend.Delete(ctx, key); err != nil {
			m.logger.Warn("artifact delete failed",
				"session_id", sessionID, "step_id", stepID,
				"kind", string(kind), "key", key, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", kind, err))
		}
	}
	if len(failures) > 0 {
		return &AggregateError{Op: "delete step", SessionID: sessionID, StepID: stepID, Errs: failures}
	}
	m.logger.Info("step deleted", "session_id", sessionID, "step_id", stepID)
	return nil
}

// DeleteSession removes every artifact under the session prefix, best-effort.
// If some deletions fail after retries, it returns an *AggregateError
// naming the keys that remain while leaving the successful deletions in
// place. Deleting a session with no stored data is a logged no-op.
//
// A store racing with DeleteSession may survive or be removed depending on
// timing; the layer does not provide serializability and this race is
// accepted.
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := ValidateID(sessionID); err != nil {
		return fmt.Errorf("session ID: %w", err)
	}
	keys, err := m.backend.List(ctx, sessionID+"/")
	if err != nil {
		return fmt.Errorf("list session %s for deletion: %w", sessionID, err)
	}
	if len(keys) == 0 {
		m.logger.Info("no stored data for session", "session_id", sessionID)
		return nil
	}

	var mu sync.Mutex
	var remaining []string
	var failures []error
	var g errgroup.Group
	g.SetLimit(deleteConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			if err := m.backend.Delete(ctx, key); err != nil {
				m.logger.Warn("session artifact delete failed",
					"session_id", sessionID, "key", key, "error", err)
				mu.Lock()
				remaining = append(remaining, key)
				failures = append(failures, fmt.Errorf("%s: %w", key, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) > 0 {
		sort.Strings(remaining)
		return &AggregateError{Op: "delete session", SessionID: sessionID, Remaining: remaining, Errs: failures}
	}
	m.logger.Info("session deleted", "session_id", sessionID, "artifacts", len(keys))
	return nil
}

// collectSegment extracts the n-th path segment of each key, collapsing
// duplicates and returning the set sorted.
func collectSegment(keys []string, n int) []string {
	seen := make(map[string]struct{})
	for _, key := range keys {
		seg := pathSegment(key, n)
		if seg != "" {
			seen[seg] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for seg := range seen {
		out = append(out, seg)
	}
	sort.Strings(out)
	return out
}

func pathSegment(key string, n int) string {
	start := 0
	for i := 0; i <= n; i++ {
		end := start
		for end < len(key) && key[end] != '/' {
			end++
		}
		if i == n {
			if end == len(key) {
				// No trailing segment follows, so this isn't a full
				// session/step/artifact key.
				return ""
			}
			return key[start:end]
		}
		if end == len(key) {
			return ""
		}
		start = end + 1
	}
	return ""
}
