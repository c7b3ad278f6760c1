// Package config handles batch-file loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/exeforge/exeforge/pkg/types"
)

// CurrentVersion is the batch-file schema version this build understands.
const CurrentVersion = "1.0"

// Defaults are applied to every job that leaves the field empty.
type Defaults struct {
	PythonPath    string `json:"pythonPath,omitempty" yaml:"pythonPath,omitempty"`
	OutputDir     string `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
	SingleFile    *bool  `json:"singleFile,omitempty" yaml:"singleFile,omitempty"`
	ConsoleWindow *bool  `json:"consoleWindow,omitempty" yaml:"consoleWindow,omitempty"`
}

// BatchConfig describes one batch of conversion jobs.
type BatchConfig struct {
	Version  string          `json:"version" yaml:"version"`
	Defaults Defaults        `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Jobs     []types.JobSpec `json:"jobs" yaml:"jobs"`
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads a batch configuration from a file. JSON is tried
// first, then YAML.
func (m *Manager) LoadConfig(path string) (*BatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg BatchConfig

	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.finalize(&cfg)
	}

	if err := yaml.Unmarshal(data, &cfg); err == nil {
		return m.finalize(&cfg)
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

func (m *Manager) finalize(cfg *BatchConfig) (*BatchConfig, error) {
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	m.applyDefaults(cfg)
	return cfg, nil
}

// ValidateConfig validates a batch configuration.
func (m *Manager) ValidateConfig(cfg *BatchConfig) error {
	if cfg.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %s", cfg.Version)
	}

	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("no jobs defined")
	}

	for i := range cfg.Jobs {
		if err := cfg.Jobs[i].Validate(); err != nil {
			return fmt.Errorf("job %d: %w", i, err)
		}
	}
	return nil
}

// applyDefaults fills empty job fields from the batch defaults. Boolean
// defaults, when present, are batch-wide modes applied to every job.
func (m *Manager) applyDefaults(cfg *BatchConfig) {
	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if job.PythonPath == "" {
			job.PythonPath = cfg.Defaults.PythonPath
		}
		if job.OutputDir == "" {
			job.OutputDir = cfg.Defaults.OutputDir
		}
	}
	if cfg.Defaults.SingleFile != nil || cfg.Defaults.ConsoleWindow != nil {
		for i := range cfg.Jobs {
			if cfg.Defaults.SingleFile != nil {
				cfg.Jobs[i].SingleFile = *cfg.Defaults.SingleFile
			}
			if cfg.Defaults.ConsoleWindow != nil {
				cfg.Jobs[i].ConsoleWindow = *cfg.Defaults.ConsoleWindow
			}
		}
	}
}

// SaveConfig writes a batch configuration as JSON.
func (m *Manager) SaveConfig(cfg *BatchConfig, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
