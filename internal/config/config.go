// Package config provides configuration loading for the reconstruction
// pipeline. Settings come from a YAML file layered over built-in defaults.
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/morfeuslab/dicomvol/internal/volume"
)

// Config is the application configuration loaded from YAML.
type Config struct {
	// Ingest parameters
	Ingest struct {
		// Workers caps concurrent file reads. Zero means one per CPU.
		Workers int `yaml:"workers"`

		// FileTimeoutSeconds bounds the wait on any single file. Zero
		// disables the bound.
		FileTimeoutSeconds int `yaml:"fileTimeoutSeconds"`

		// Modalities restricts ingestion to the listed modality codes.
		// Empty means all supported modalities.
		Modalities []string `yaml:"modalities"`
	} `yaml:"ingest"`

	// Reconstruction parameters
	Reconstruct struct {
		// RepairSkippedSlices inserts an interpolated slice when a gap in
		// the slice positions is detected. When false the gap is only
		// flagged.
		RepairSkippedSlices bool `yaml:"repairSkippedSlices"`

		// Parallel resolves independent volumes concurrently.
		Parallel bool `yaml:"parallel"`
	} `yaml:"reconstruct"`

	// Preview parameters
	Preview struct {
		// Enabled writes a PNG of each volume's middle slice.
		Enabled bool `yaml:"enabled"`

		// Dir is the output directory for preview images.
		Dir string `yaml:"dir"`

		// Scale multiplies preview dimensions, 1 keeps native size.
		Scale float64 `yaml:"scale"`
	} `yaml:"preview"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Ingest.Workers = runtime.NumCPU()
	cfg.Ingest.FileTimeoutSeconds = 60
	cfg.Reconstruct.RepairSkippedSlices = true
	cfg.Reconstruct.Parallel = true
	cfg.Preview.Dir = "previews"
	cfg.Preview.Scale = 1.0
	return cfg
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Ingest.Workers < 0 {
		return fmt.Errorf("ingest.workers must not be negative")
	}
	if c.Ingest.FileTimeoutSeconds < 0 {
		return fmt.Errorf("ingest.fileTimeoutSeconds must not be negative")
	}
	for _, m := range c.Ingest.Modalities {
		if !volume.IsValid(m) {
			return fmt.Errorf("ingest.modalities: unsupported modality %q", m)
		}
	}
	if c.Preview.Scale <= 0 {
		return fmt.Errorf("preview.scale must be positive")
	}
	return nil
}

// FileTimeout returns the per-file bound as a duration.
func (c *Config) FileTimeout() time.Duration {
	return time.Duration(c.Ingest.FileTimeoutSeconds) * time.Second
}

// ModalityAllowed reports whether records of the given modality are ingested.
func (c *Config) ModalityAllowed(m volume.Modality) bool {
	if len(c.Ingest.Modalities) == 0 {
		return true
	}
	for _, allowed := range c.Ingest.Modalities {
		if volume.Modality(allowed) == m {
			return true
		}
	}
	return false
}
