package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestResolveConfigDefaults(t *testing.T) {
	t.Setenv(EnvPreferRemote, "")
	t.Setenv(EnvS3Bucket, "")
	t.Setenv(EnvS3Region, "")
	t.Setenv(EnvLocalBasePath, "")

	cfg, err := resolveConfig(Options{})
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	if cfg.Backend != BackendLocal {
		t.Errorf("Backend = %v, want %v (no bucket, default preference falls back silently)", cfg.Backend, BackendLocal)
	}
	if cfg.Region != DefaultS3Region {
		t.Errorf("Region = %q, want %q", cfg.Region, DefaultS3Region)
	}
	if !filepath.IsAbs(cfg.LocalBasePath) {
		t.Errorf("LocalBasePath = %q, want absolute path", cfg.LocalBasePath)
	}
}

func TestResolveConfigExplicitRemoteWithoutBucket(t *testing.T) {
	t.Setenv(EnvS3Bucket, "")

	_, err := resolveConfig(Options{PreferRemote: Bool(true)})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("resolveConfig() error = %v, want *ConfigError", err)
	}
}

func TestResolveConfigRemoteFromEnv(t *testing.T) {
	t.Setenv(EnvS3Bucket, "telemetry-bucket")
	t.Setenv(EnvS3Region, "eu-west-1")

	cfg, err := resolveConfig(Options{})
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	if cfg.Backend != BackendS3 {
		t.Errorf("Backend = %v, want %v", cfg.Backend, BackendS3)
	}
	if cfg.Bucket != "telemetry-bucket" {
		t.Errorf("Bucket = %q, want %q", cfg.Bucket, "telemetry-bucket")
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("Region = %q, want %q", cfg.Region, "eu-west-1")
	}
}

func TestResolveConfigOverridesBeatEnv(t *testing.T) {
	t.Setenv(EnvS3Bucket, "env-bucket")
	t.Setenv(EnvS3Region, "env-region")
	t.Setenv(EnvLocalBasePath, t.TempDir())

	explicit := t.TempDir()
	cfg, err := resolveConfig(Options{
		Bucket:        "explicit-bucket",
		Region:        "explicit-region",
		LocalBasePath: explicit,
	})
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	if cfg.Bucket != "explicit-bucket" {
		t.Errorf("Bucket = %q, want explicit override", cfg.Bucket)
	}
	if cfg.Region != "explicit-region" {
		t.Errorf("Region = %q, want explicit override", cfg.Region)
	}
	if cfg.LocalBasePath != explicit {
		t.Errorf("LocalBasePath = %q, want %q", cfg.LocalBasePath, explicit)
	}
}

func TestResolveConfigPreferLocalIgnoresBucket(t *testing.T) {
	t.Setenv(EnvS3Bucket, "telemetry-bucket")

	cfg, err := resolveConfig(Options{PreferRemote: Bool(false)})
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	if cfg.Backend != BackendLocal {
		t.Errorf("Backend = %v, want %v", cfg.Backend, BackendLocal)
	}
}

func TestResolveConfigEnvPreferenceFlag(t *testing.T) {
	t.Setenv(EnvPreferRemote, "false")
	t.Setenv(EnvS3Bucket, "telemetry-bucket")

	cfg, err := resolveConfig(Options{})
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	if cfg.Backend != BackendLocal {
		t.Errorf("Backend = %v, want %v (env flag disables remote)", cfg.Backend, BackendLocal)
	}

	// Env-requested remote without a bucket is as strict as an explicit one.
	t.Setenv(EnvPreferRemote, "true")
	t.Setenv(EnvS3Bucket, "")
	_, err = resolveConfig(Options{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("resolveConfig() error = %v, want *ConfigError", err)
	}

	// Explicit override beats the env flag.
	t.Setenv(EnvPreferRemote, "true")
	t.Setenv(EnvS3Bucket, "telemetry-bucket")
	cfg, err = resolveConfig(Options{PreferRemote: Bool(false)})
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	if cfg.Backend != BackendLocal {
		t.Errorf("Backend = %v, want %v (explicit beats env)", cfg.Backend, BackendLocal)
	}
}

func TestResolveConfigBadPreferenceFlag(t *testing.T) {
	t.Setenv(EnvPreferRemote, "maybe")

	_, err := resolveConfig(Options{})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("resolveConfig() error = %v, want *ConfigError", err)
	}
}

func TestResolveConfigBasePathIsFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "occupied")
	writeTestFile(t, file)

	_, err := resolveConfig(Options{PreferRemote: Bool(false), LocalBasePath: file})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("resolveConfig() error = %v, want *ConfigError", err)
	}
}
