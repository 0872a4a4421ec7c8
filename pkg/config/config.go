// Package config provides configuration loading and management for tiffnorm.
// It handles loading configuration from YAML files and provides default values;
// command-line flags override whatever the file supplies.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NewPixelSize is the physical size one output pixel should cover.
		// 0 disables resampling.
		NewPixelSize float64 `yaml:"newPixelSize"`

		// NewColorStepDist is the physical distance one output color step
		// should cover. 0 uses the full 16-bit range.
		NewColorStepDist float64 `yaml:"newColorStepDist"`

		// BinaryMode collapses the output to a two-level classification image
		BinaryMode bool `yaml:"binaryMode"`
	} `yaml:"processing"`

	// Gaussian blur parameters, supplied up front so the pipeline can
	// validate them before any numeric work starts
	Blur struct {
		// Enabled turns the smoothing stage on
		Enabled bool `yaml:"enabled"`

		// KernelSize is the blur kernel size; must be a positive odd integer
		KernelSize int `yaml:"kernelSize"`

		// Sigma is the Gaussian spread; 0 or below derives the spread from
		// the kernel size
		Sigma float64 `yaml:"sigma"`
	} `yaml:"blur"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// No resampling, full 16-bit range, continuous mode by default
	cfg.Processing.NewPixelSize = 0
	cfg.Processing.NewColorStepDist = 0
	cfg.Processing.BinaryMode = false

	// Default blur parameters: disabled, modest kernel, auto-derived spread
	cfg.Blur.Enabled = false
	cfg.Blur.KernelSize = 5
	cfg.Blur.Sigma = 0

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
