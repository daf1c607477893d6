package collector

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtrail-dev/webtrail/pkg/storage"
)

func newTestStore(t *testing.T) *storage.Manager {
	t.Helper()
	mgr, err := storage.NewManager(context.Background(), storage.Options{
		PreferRemote:  storage.Bool(false),
		LocalBasePath: t.TempDir(),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return mgr
}

func TestCollectStepStoresAllArtifacts(t *testing.T) {
	store := newTestStore(t)
	c := New(store, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	record, err := c.CollectStep(ctx, StepInput{
		SessionID:  "sess-1",
		TaskID:     "task-9",
		URL:        "https://example.com/results",
		Action:     Action{Type: "click", Selector: "#submit"},
		HTML:       "<html><body>results</body></html>",
		Screenshot: []byte{0x89, 'P', 'N', 'G'},
	})
	require.NoError(t, err)
	require.NotEmpty(t, record.StepID)
	assert.Len(t, record.Locations, 4)
	assert.Equal(t, "sess-1", record.SessionID)
	assert.Equal(t, "task-9", record.TaskID)

	data, err := store.RetrieveStepData(ctx, "sess-1", record.StepID)
	require.NoError(t, err)

	// HTML is stored gzip-compressed.
	r, err := gzip.NewReader(bytes.NewReader(data.HTML))
	require.NoError(t, err)
	html, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "<html><body>results</body></html>", string(html))

	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data.Screenshot)

	var action Action
	require.NoError(t, json.Unmarshal(data.Action, &action))
	assert.Equal(t, "click", action.Type)
	assert.Equal(t, "#submit", action.Selector)

	var meta StepMetadata
	require.NoError(t, json.Unmarshal(data.Metadata, &meta))
	assert.Equal(t, "sess-1", meta.SessionID)
	assert.Equal(t, record.StepID, meta.StepID)
	assert.Equal(t, "https://example.com/results", meta.URL)
	assert.NotEmpty(t, meta.Timestamp)
}

func TestCollectStepRespectsToggles(t *testing.T) {
	store := newTestStore(t)
	cfg := Config{CollectAction: true, CollectMetadata: true} // no html, no screenshot
	c := New(store, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	record, err := c.CollectStep(ctx, StepInput{
		SessionID:  "sess-1",
		URL:        "https://example.com",
		Action:     Action{Type: "navigate", URL: "https://example.com"},
		HTML:       "<html/>",
		Screenshot: []byte("png"),
	})
	require.NoError(t, err)
	assert.Len(t, record.Locations, 2)
	assert.NotContains(t, record.Locations, storage.KindHTML)
	assert.NotContains(t, record.Locations, storage.KindScreenshot)
}

func TestCollectStepUniqueIDs(t *testing.T) {
	store := newTestStore(t)
	c := New(store, DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		record, err := c.CollectStep(ctx, StepInput{
			SessionID: "sess-1",
			URL:       "https://example.com",
			Action:    Action{Type: "scroll"},
			HTML:      "<html/>",
		})
		require.NoError(t, err)
		_, dup := seen[record.StepID]
		require.False(t, dup, "step ID %s generated twice", record.StepID)
		seen[record.StepID] = struct{}{}
	}

	assert.Len(t, c.Ledger(), 5)
}

func TestCollectStepRateLimitCancellation(t *testing.T) {
	store := newTestStore(t)
	cfg := DefaultConfig()
	cfg.StepsPerSecond = 0.001 // effectively stalls the second step
	c := New(store, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx := context.Background()
	_, err := c.CollectStep(ctx, StepInput{
		SessionID: "sess-1",
		URL:       "https://example.com",
		Action:    Action{Type: "navigate"},
		HTML:      "<html/>",
	})
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.CollectStep(canceled, StepInput{
		SessionID: "sess-1",
		URL:       "https://example.com",
		Action:    Action{Type: "navigate"},
		HTML:      "<html/>",
	})
	require.Error(t, err)
}
