// Package config loads the webtrail application configuration from YAML,
// with environment fallbacks and defaults applied on load.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/webtrail-dev/webtrail/pkg/collector"
	"github.com/webtrail-dev/webtrail/pkg/storage"
)

// Config represents the application configuration
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Collector    CollectorConfig    `yaml:"collector"`
	Browser      BrowserConfig      `yaml:"browser"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// StorageConfig selects and parameterizes the storage backend. Unset fields
// fall through to the storage layer's own environment resolution.
type StorageConfig struct {
	PreferRemote  *bool  `yaml:"prefer_remote"`
	S3Bucket      string `yaml:"s3_bucket"`
	S3Region      string `yaml:"s3_region"`
	LocalBasePath string `yaml:"local_base_path"`
}

// CollectorConfig controls per-step artifact capture.
type CollectorConfig struct {
	CollectHTML       *bool   `yaml:"collect_html"`
	CollectScreenshot *bool   `yaml:"collect_screenshot"`
	CollectAction     *bool   `yaml:"collect_action"`
	CollectMetadata   *bool   `yaml:"collect_metadata"`
	StepsPerSecond    float64 `yaml:"steps_per_second"`
	Burst             int     `yaml:"burst"`
}

// BrowserConfig parameterizes launched browser sessions.
type BrowserConfig struct {
	Headless       *bool   `yaml:"headless"`
	ViewportWidth  int     `yaml:"viewport_width"`
	ViewportHeight int     `yaml:"viewport_height"`
	TimeoutMS      float64 `yaml:"timeout_ms"`
}

// OrchestratorConfig controls workflow fan-out.
type OrchestratorConfig struct {
	Sessions int `yaml:"sessions"`
}

// MetricsConfig controls the metrics/health HTTP listener.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - caller-chosen config file
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Orchestrator.Sessions == 0 {
		c.Orchestrator.Sessions = 1
	}
	if c.Browser.Headless == nil {
		headless := true
		c.Browser.Headless = &headless
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}

	// Storage fields left empty in the file resolve from the environment in
	// the storage layer itself; only mirror the env here when explicitly
	// unset so the file stays authoritative.
	if c.Storage.S3Bucket == "" {
		c.Storage.S3Bucket = os.Getenv(storage.EnvS3Bucket)
	}
	if c.Storage.S3Region == "" {
		c.Storage.S3Region = os.Getenv(storage.EnvS3Region)
	}
	if c.Storage.LocalBasePath == "" {
		c.Storage.LocalBasePath = os.Getenv(storage.EnvLocalBasePath)
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Orchestrator.Sessions < 1 {
		return fmt.Errorf("orchestrator.sessions must be at least 1")
	}
	if c.Collector.StepsPerSecond < 0 {
		return fmt.Errorf("collector.steps_per_second cannot be negative")
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be a valid TCP port")
	}
	return nil
}

// StorageOptions translates the storage section into storage.Options.
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		PreferRemote:  c.Storage.PreferRemote,
		Bucket:        c.Storage.S3Bucket,
		Region:        c.Storage.S3Region,
		LocalBasePath: c.Storage.LocalBasePath,
	}
}

// CollectorSettings translates the collector section into collector.Config.
func (c *Config) CollectorSettings() collector.Config {
	settings := collector.DefaultConfig()
	if c.Collector.CollectHTML != nil {
		settings.CollectHTML = *c.Collector.CollectHTML
	}
	if c.Collector.CollectScreenshot != nil {
		settings.CollectScreenshot = *c.Collector.CollectScreenshot
	}
	if c.Collector.CollectAction != nil {
		settings.CollectAction = *c.Collector.CollectAction
	}
	if c.Collector.CollectMetadata != nil {
		settings.CollectMetadata = *c.Collector.CollectMetadata
	}
	settings.StepsPerSecond = c.Collector.StepsPerSecond
	settings.Burst = c.Collector.Burst
	return settings
}

// Save saves configuration to a YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
