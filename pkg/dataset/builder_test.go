package dataset

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webtrail-dev/webtrail/pkg/storage"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.Manager {
	t.Helper()
	mgr, err := storage.NewManager(context.Background(), storage.Options{
		PreferRemote:  storage.Bool(false),
		LocalBasePath: t.TempDir(),
		Logger:        quiet(),
	})
	require.NoError(t, err)
	return mgr
}

func gzipString(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestBuildEmitsOneLinePerStep(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, step := range []string{"s1", "s2"} {
		_, err := store.StoreStepData(ctx, "sess-1", step, storage.StepArtifacts{
			HTML:     gzipString(t, "<html><body>"+step+"</body></html>"),
			Action:   []byte(`{"type":"click"}`),
			Metadata: []byte(`{"url":"https://example.com"}`),
		})
		require.NoError(t, err)
	}

	var out bytes.Buffer
	written, err := NewBuilder(store, quiet()).Build(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	scanner := bufio.NewScanner(&out)
	lines := 0
	for scanner.Scan() {
		var record Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		assert.Equal(t, "sess-1", record.SessionID)
		assert.Contains(t, record.HTMLContent, record.StepID)
		assert.NotEmpty(t, record.Action)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}

func TestBuildDecodesGzipAndPassesPlainHTML(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreStepData(ctx, "sess-1", "plain", storage.StepArtifacts{
		HTML: []byte("<html>uncompressed</html>"),
	})
	require.NoError(t, err)

	var out bytes.Buffer
	written, err := NewBuilder(store, quiet()).Build(ctx, &out)
	require.NoError(t, err)
	require.Equal(t, 1, written)

	var record Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, "<html>uncompressed</html>", record.HTMLContent)
}

func TestBuildScreenshotRef(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreStepData(ctx, "sess-1", "s1", storage.StepArtifacts{
		Screenshot: []byte{0x89, 'P', 'N', 'G'},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = NewBuilder(store, quiet()).Build(ctx, &out)
	require.NoError(t, err)

	var record Record
	require.NoError(t, json.Unmarshal(out.Bytes(), &record))
	assert.Equal(t, store.Location("sess-1", "s1", storage.KindScreenshot), record.ScreenshotRef)
	assert.Empty(t, record.HTMLContent)
}

func TestBuildEmptyStore(t *testing.T) {
	store := newTestStore(t)
	var out bytes.Buffer
	written, err := NewBuilder(store, quiet()).Build(context.Background(), &out)
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Zero(t, out.Len())
}

func TestBuildFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StoreStepData(ctx, "sess-1", "s1", storage.StepArtifacts{
		Action: []byte(`{"type":"navigate"}`),
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.jsonl")
	written, err := NewBuilder(store, quiet()).BuildFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	assert.FileExists(t, path)
}
