package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tmpSuffix = ".tmp"

// FileBackend implements Backend on the local filesystem. Keys map directly
// to paths under baseDir; directories are created lazily on first write and
// pruned when their last object is deleted.
type FileBackend struct {
	baseDir string
}

// NewFileBackend creates a file-based storage backend rooted at baseDir.
// The directory itself is not created until the first write.
func NewFileBackend(baseDir string) (*FileBackend, error) {
	if baseDir == "" {
		return nil, &ConfigError{Reason: "local base path is required"}
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("resolve local base path %q: %v", baseDir, err)}
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		return nil, &ConfigError{Reason: fmt.Sprintf("local base path %q exists and is not a directory", abs)}
	}
	return &FileBackend{baseDir: abs}, nil
}

// path resolves a key to an absolute path under baseDir, rejecting key
// segments that would escape it.
func (f *FileBackend) path(key string) (string, error) {
	if key == "" {
		return "", &PermanentError{Op: "resolve", Key: key, Err: errors.New("empty key")}
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || strings.Contains(seg, "..") || strings.ContainsRune(seg, '\\') {
			return "", &PermanentError{Op: "resolve", Key: key, Err: ErrInvalidID}
		}
	}
	return filepath.Join(f.baseDir, filepath.FromSlash(key)), nil
}

// Put stores data at key using a write-temp-then-rename sequence so
// concurrent readers never observe a truncated object.
func (f *FileBackend) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &PermanentError{Op: "put", Key: key, Err: fmt.Errorf("create directory: %w", err)}
	}
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return &PermanentError{Op: "put", Key: key, Err: fmt.Errorf("write temp file: %w", err)}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return &PermanentError{Op: "put", Key: key, Err: fmt.Errorf("atomic rename: %w", err)}
	}
	return nil
}

// Get retrieves the object at key.
func (f *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 - key segments validated against traversal
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	if err != nil {
		return nil, &PermanentError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

// List returns all keys under prefix in directory-traversal order. In-flight
// temp files are skipped.
func (f *FileBackend) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := filepath.WalkDir(f.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, tmpSuffix) {
			return nil
		}
		rel, err := filepath.Rel(f.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &PermanentError{Op: "list", Key: prefix, Err: err}
	}
	return keys, nil
}

// Delete removes the object at key. Empty parent directories are pruned
// best-effort so deleted steps leave no residue under baseDir.
func (f *FileBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &PermanentError{Op: "delete", Key: key, Err: err}
	}
	f.pruneEmptyDirs(filepath.Dir(path))
	return nil
}

// Location returns the absolute path for key.
func (f *FileBackend) Location(key string) string {
	return filepath.Join(f.baseDir, filepath.FromSlash(key))
}

func (f *FileBackend) pruneEmptyDirs(dir string) {
	for dir != f.baseDir && strings.HasPrefix(dir, f.baseDir) {
		if err := os.Remove(dir); err != nil {
			return // non-empty or already gone
		}
		dir = filepath.Dir(dir)
	}
}
