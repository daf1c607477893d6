package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Environment variables consumed when explicit overrides are absent.
const (
	EnvPreferRemote  = "STORAGE_PREFER_REMOTE"
	EnvS3Bucket      = "STORAGE_S3_BUCKET"
	EnvS3Region      = "STORAGE_S3_REGION"
	EnvLocalBasePath = "STORAGE_LOCAL_BASE_PATH"
)

// Defaults applied when neither override nor environment resolves a value.
// The bucket has no default: remote storage must be configured to be used.
const (
	DefaultS3Region      = "us-east-1"
	DefaultLocalBasePath = "./storage_fallback_data"
)

// BackendKind names the backend variant a Manager was resolved to.
type BackendKind string

const (
	BackendS3    BackendKind = "s3"
	BackendLocal BackendKind = "local"
)

// Options configures a Manager. Every field is optional; unset fields resolve
// from the environment and then from defaults.
type Options struct {
	// PreferRemote selects S3 when a bucket is resolvable. Leaving it nil
	// means "prefer remote if configured": when no bucket resolves, the
	// manager silently falls back to local storage. Setting it explicitly to
	// true makes an unresolvable bucket a construction-time ConfigError.
	PreferRemote *bool

	// Bucket overrides EnvS3Bucket.
	Bucket string
	// Region overrides EnvS3Region.
	Region string
	// LocalBasePath overrides EnvLocalBasePath.
	LocalBasePath string

	// Retry overrides the default backend retry policy.
	Retry RetryPolicy

	// Logger receives structured operation logs (default: slog.Default()).
	Logger *slog.Logger
}

// Bool returns a pointer to b, for setting Options.PreferRemote.
func Bool(b bool) *bool { return &b }

// Config is the immutable resolved storage configuration held by a Manager
// for its lifetime.
type Config struct {
	Backend       BackendKind
	Bucket        string
	Region        string
	LocalBasePath string
}

// resolveConfig applies the precedence explicit > environment > default and
// decides the effective backend. An explicit remote preference with no
// resolvable bucket fails here, at construction, rather than surfacing later
// as a runtime I/O error.
func resolveConfig(opts Options) (Config, error) {
	bucket := opts.Bucket
	if bucket == "" {
		bucket = os.Getenv(EnvS3Bucket)
	}
	region := opts.Region
	if region == "" {
		region = os.Getenv(EnvS3Region)
	}
	if region == "" {
		region = DefaultS3Region
	}
	basePath := opts.LocalBasePath
	if basePath == "" {
		basePath = os.Getenv(EnvLocalBasePath)
	}
	if basePath == "" {
		basePath = DefaultLocalBasePath
	}
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return Config{}, &ConfigError{Reason: fmt.Sprintf("resolve local base path %q: %v", basePath, err)}
	}
	if info, err := os.Stat(absBase); err == nil && !info.IsDir() {
		return Config{}, &ConfigError{Reason: fmt.Sprintf("local base path %q exists and is not a directory", absBase)}
	}

	preferRemote := true
	explicit := false
	if opts.PreferRemote != nil {
		preferRemote = *opts.PreferRemote
		explicit = true
	} else if raw := os.Getenv(EnvPreferRemote); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, &ConfigError{Reason: fmt.Sprintf("invalid %s value %q", EnvPreferRemote, raw)}
		}
		preferRemote = v
		explicit = true
	}

	if preferRemote && bucket == "" {
		if explicit {
			return Config{}, &ConfigError{Reason: fmt.Sprintf(
				"remote storage requested but no bucket configured (set %s or pass Options.Bucket)", EnvS3Bucket)}
		}
		preferRemote = false
	}

	cfg := Config{
		Bucket:        bucket,
		Region:        region,
		LocalBasePath: absBase,
	}
	if preferRemote {
		cfg.Backend = BackendS3
	} else {
		cfg.Backend = BackendLocal
	}
	return cfg, nil
}
