// Package config provides configuration types and defaults for dcmcache.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/zjrosen/dcmcache/internal/log"
)

// DefaultThreshold is the isosurface intensity used when a request does not name one.
const DefaultThreshold = 300.0

// Config holds all configuration options for dcmcache.
type Config struct {
	Cache          CacheConfig          `mapstructure:"cache"`
	Workers        WorkersConfig        `mapstructure:"workers"`
	Reconstruction ReconstructionConfig `mapstructure:"reconstruction"`
	API            APIConfig            `mapstructure:"api"`
	Watcher        WatcherConfig        `mapstructure:"watcher"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
	LogLevel       string               `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// CacheConfig locates the on-disk cache.
type CacheConfig struct {
	// Root is the cache directory. Empty means <user cache dir>/dcmcache.
	Root string `mapstructure:"root"`
}

// WorkersConfig sizes the worker pool that runs copies, decodes and reconstructions.
type WorkersConfig struct {
	Max int `mapstructure:"max" validate:"gte=1,lte=64"`
}

// ReconstructionConfig configures the external mesh tools.
// Command arguments may use {dir}, {name}, {threshold}, {input} and {output}.
type ReconstructionConfig struct {
	Threshold     float64       `mapstructure:"threshold"`
	Reconstructor []string      `mapstructure:"reconstructor" validate:"required,min=1"`
	Converter     []string      `mapstructure:"converter" validate:"required,min=1"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// APIConfig configures the HTTP API started by `dcmcache serve`.
type APIConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

// WatcherConfig configures the cache root watcher.
type WatcherConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // "none", "file", "stdout", "otlp"
	FilePath     string  `mapstructure:"file_path"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	ServiceName  string  `mapstructure:"service_name"`
}

// DefaultTracesFilePath returns ~/.config/dcmcache/traces/traces.jsonl or empty
// string if the home dir is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "dcmcache", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Workers: WorkersConfig{Max: 4},
		Reconstruction: ReconstructionConfig{
			Threshold:     DefaultThreshold,
			Reconstructor: []string{"dcm2mesh", "--input", "{dir}", "--threshold", "{threshold}", "--output", "{output}"},
			Converter:     []string{"usdcat", "{input}", "--out", "{output}", "--usdFormat", "usdc"},
			Timeout:       10 * time.Minute,
		},
		API: APIConfig{Addr: "localhost:19300"},
		Watcher: WatcherConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "file",
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			ServiceName:  "dcmcache",
		},
		LogLevel: "debug",
	}
}

var validate = validator.New()

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return ValidateTracing(c.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the commented YAML written on first run.
func DefaultConfigTemplate() string {
	return `# dcmcache configuration

cache:
  # Cache directory. Empty uses the platform user cache dir (e.g. ~/.cache/dcmcache).
  root: ""

workers:
  # Concurrent copy/decode/reconstruction tasks.
  max: 4

reconstruction:
  # Default isosurface threshold when a request does not supply one. Any value,
  # including zero or negative Hounsfield units, is passed to the tool as is.
  threshold: 300
  # External isosurface extractor. Must write an intermediate mesh to {output}.
  reconstructor: ["dcm2mesh", "--input", "{dir}", "--threshold", "{threshold}", "--output", "{output}"]
  # External mesh converter. Must write a binary USD (PXR-USDC) file to {output}.
  converter: ["usdcat", "{input}", "--out", "{output}", "--usdFormat", "usdc"]
  timeout: 10m

api:
  addr: localhost:19300

watcher:
  # Rescan the cache when dataset directories appear or disappear.
  enabled: true
  debounce: 500ms

log_level: debug

# tracing:
#   enabled: true
#   exporter: file        # none | file | stdout | otlp
#   file_path: ~/.config/dcmcache/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
