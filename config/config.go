// Package config loads the gpuwatch tool configuration.
//
// The config lives at /etc/gpuwatch/gpuwatch.yaml by default and carries the
// few operator-tunable knobs: an optional instance display name, the metric
// polling interval, and the DCGM exporter container settings. A missing file
// yields the defaults; a malformed file is a fatal startup error.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file location unless overridden with --config.
const DefaultPath = "/etc/gpuwatch/gpuwatch.yaml"

// General holds instance-level settings.
type General struct {
	// InstanceName is the optional operator-supplied display name attached
	// to scraped metrics. Empty means the label is omitted.
	InstanceName string `yaml:"instance_name,omitempty"`

	// PollingIntervalSecs drives both the exporter's collection interval
	// and the agent's scrape interval.
	PollingIntervalSecs int `yaml:"polling_interval_secs"`
}

// Exporter holds DCGM exporter container settings.
type Exporter struct {
	Image        string `yaml:"image"`
	Port         int    `yaml:"port"`
	CountersFile string `yaml:"counters_file"`
}

// Agent holds monitoring agent paths.
type Agent struct {
	BaseDir string `yaml:"base_dir"`
}

// Config is the full tool configuration.
type Config struct {
	General  General  `yaml:"general"`
	Exporter Exporter `yaml:"exporter"`
	Agent    Agent    `yaml:"agent"`
}

// ParseError reports a config file that exists but cannot be used.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		General: General{
			PollingIntervalSecs: 30,
		},
		Exporter: Exporter{
			Image:        "nvcr.io/nvidia/k8s/dcgm-exporter:3.3.5-3.4.1-ubuntu22.04",
			Port:         9400,
			CountersFile: "/etc/gpuwatch/dcgm-counters.csv",
		},
		Agent: Agent{
			BaseDir: "/opt/aws/amazon-cloudwatch-agent",
		},
	}
}

// Load reads the config at path. A missing file returns the defaults (not an
// error); unreadable or malformed content returns a *ParseError.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, &ParseError{Path: path, Err: err}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	if err := cfg.validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.General.PollingIntervalSecs <= 0 {
		return fmt.Errorf("general.polling_interval_secs must be positive, got %d", c.General.PollingIntervalSecs)
	}
	if c.Exporter.Port <= 0 || c.Exporter.Port > 65535 {
		return fmt.Errorf("exporter.port %d out of range", c.Exporter.Port)
	}
	if c.Exporter.Image == "" {
		return fmt.Errorf("exporter.image must not be empty")
	}
	if c.Exporter.CountersFile == "" {
		return fmt.Errorf("exporter.counters_file must not be empty")
	}
	if c.Agent.BaseDir == "" {
		return fmt.Errorf("agent.base_dir must not be empty")
	}
	return nil
}
