// Package config provides configuration loading and management for dicomseries.
// It handles loading configuration from YAML files, applies DICOMSERIES_*
// environment overrides and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"dicomseries/pkg/series"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Loader parameters
	Loader struct {
		// Workers is how many files are decoded and slices normalized at once
		Workers int `yaml:"workers" env:"DICOMSERIES_WORKERS"`

		// RelativeTolerance bounds spacing and rescale differences between slices
		RelativeTolerance float64 `yaml:"relativeTolerance" env:"DICOMSERIES_RELATIVE_TOLERANCE"`

		// PositionTolerance decides when two slices occupy the same position
		PositionTolerance float64 `yaml:"positionTolerance" env:"DICOMSERIES_POSITION_TOLERANCE"`

		// MaxSpacingCV is the accepted coefficient of variation of slice gaps
		MaxSpacingCV float64 `yaml:"maxSpacingCV" env:"DICOMSERIES_MAX_SPACING_CV"`
	} `yaml:"loader"`

	// Preview image export
	Preview struct {
		Enabled bool `yaml:"enabled" env:"DICOMSERIES_PREVIEW"`

		// Axes lists the axes (x, y, z) to export
		Axes []string `yaml:"axes" env:"DICOMSERIES_PREVIEW_AXES" envSeparator:","`

		// WindowCenter and WindowWidth map samples to display intensity.
		// A zero width means the full intensity range of the volume.
		WindowCenter float64 `yaml:"windowCenter" env:"DICOMSERIES_WINDOW_CENTER"`
		WindowWidth  float64 `yaml:"windowWidth" env:"DICOMSERIES_WINDOW_WIDTH"`

		// Colormap is gray, hot or bone
		Colormap string `yaml:"colormap" env:"DICOMSERIES_COLORMAP"`

		OutputDir string `yaml:"outputDir" env:"DICOMSERIES_PREVIEW_DIR"`
	} `yaml:"preview"`

	// Resample parameters
	Resample struct {
		// TargetSpacingZ resamples the volume along depth; zero disables it
		TargetSpacingZ float64 `yaml:"targetSpacingZ" env:"DICOMSERIES_TARGET_SPACING_Z"`
	} `yaml:"resample"`

	// Telemetry parameters
	Telemetry struct {
		// Endpoint is the OTLP HTTP endpoint; empty disables tracing
		Endpoint    string `yaml:"endpoint" env:"DICOMSERIES_OTEL_ENDPOINT"`
		ServiceName string `yaml:"serviceName" env:"DICOMSERIES_OTEL_SERVICE"`
	} `yaml:"telemetry"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose" env:"DICOMSERIES_VERBOSE"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	tol := series.DefaultTolerances()
	cfg.Loader.Workers = runtime.NumCPU()
	cfg.Loader.RelativeTolerance = tol.Relative
	cfg.Loader.PositionTolerance = tol.Position
	cfg.Loader.MaxSpacingCV = tol.MaxSpacingCV

	cfg.Preview.Enabled = false
	cfg.Preview.Axes = []string{"x", "y", "z"}
	cfg.Preview.Colormap = "gray"
	cfg.Preview.OutputDir = "preview"

	cfg.Telemetry.ServiceName = "dicomseries"

	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file and applies environment
// overrides. If the file doesn't exist, the defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any DICOMSERIES_* variables that are set
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Tolerances returns the loader tolerances
func (c *Config) Tolerances() series.Tolerances {
	return series.Tolerances{
		Relative:     c.Loader.RelativeTolerance,
		Position:     c.Loader.PositionTolerance,
		MaxSpacingCV: c.Loader.MaxSpacingCV,
	}
}

// Validate rejects settings the loader cannot work with
func (c *Config) Validate() error {
	if c.Loader.RelativeTolerance < 0 || c.Loader.PositionTolerance < 0 {
		return fmt.Errorf("tolerances must be non-negative")
	}
	if c.Loader.MaxSpacingCV <= 0 {
		return fmt.Errorf("maxSpacingCV must be positive")
	}
	if c.Resample.TargetSpacingZ < 0 {
		return fmt.Errorf("targetSpacingZ must be non-negative")
	}
	for _, axis := range c.Preview.Axes {
		switch axis {
		case "x", "y", "z":
		default:
			return fmt.Errorf("invalid preview axis %q (must be x, y, or z)", axis)
		}
	}
	switch c.Preview.Colormap {
	case "gray", "hot", "bone":
	default:
		return fmt.Errorf("invalid colormap %q (must be gray, hot, or bone)", c.Preview.Colormap)
	}
	return nil
}
