// Package config loads the application configuration file. Policy rules
// live in their own document (see internal/policy); this file covers paths,
// schedules, and runtime knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for the gatekeeper daemon and CLI.
type Config struct {
	// PolicyPath points at the policy YAML document.
	PolicyPath string `yaml:"policy_path"`

	// StateDir holds runtime state: kill switch file, default audit
	// location, sqlite store.
	StateDir string `yaml:"state_dir"`

	Audit   AuditConfig   `yaml:"audit"`
	Guard   GuardConfig   `yaml:"guard"`
	Monitor MonitorConfig `yaml:"monitor"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type AuditConfig struct {
	Dir           string `yaml:"dir"`
	SQLitePath    string `yaml:"sqlite_path"`
	RetentionDays int    `yaml:"retention_days"`
}

type GuardConfig struct {
	// VolumeName overrides the policy document's sensitive volume name.
	VolumeName string `yaml:"volume_name"`
}

type MonitorConfig struct {
	SweepSchedule      string `yaml:"sweep_schedule"`
	MountCheckSchedule string `yaml:"mount_check_schedule"`
	PruneSchedule      string `yaml:"prune_schedule"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file. Environment variables in
// the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	if cfg.PolicyPath == "" {
		cfg.PolicyPath = filepath.Join(cfg.StateDir, "policy.yaml")
	}
	if cfg.Audit.Dir == "" {
		cfg.Audit.Dir = filepath.Join(cfg.StateDir, "audit")
	}
	if cfg.Audit.SQLitePath == "" {
		cfg.Audit.SQLitePath = filepath.Join(cfg.StateDir, "audit.db")
	}
	if cfg.Audit.RetentionDays == 0 {
		cfg.Audit.RetentionDays = 90
	}
	if cfg.Monitor.SweepSchedule == "" {
		cfg.Monitor.SweepSchedule = "@every 1m"
	}
	if cfg.Monitor.MountCheckSchedule == "" {
		cfg.Monitor.MountCheckSchedule = "@every 5m"
	}
	if cfg.Monitor.PruneSchedule == "" {
		cfg.Monitor.PruneSchedule = "@daily"
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = "127.0.0.1:9184"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// KillSwitchPath returns the kill switch state file location.
func (c *Config) KillSwitchPath() string {
	return filepath.Join(c.StateDir, "killswitch.state")
}

// AuditRetention converts the configured retention to a duration.
func (c *Config) AuditRetention() time.Duration {
	return time.Duration(c.Audit.RetentionDays) * 24 * time.Hour
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gatekeeper"
	}
	return filepath.Join(home, ".gatekeeper")
}
