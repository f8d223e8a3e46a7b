// Package scrape generates the Prometheus scrape descriptor the monitoring
// agent uses to pull metrics from the local DCGM exporter endpoint.
package scrape

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// The destination lives under the agent's root-owned install prefix, so the
// final copy is elevated.
const sudoPath = "/usr/bin/sudo"

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Descriptor describes one exporter scrape target.
type Descriptor struct {
	// Port the exporter listens on (localhost only).
	Port int

	// IntervalSecs is used for scrape, evaluation and timeout intervals.
	IntervalSecs int

	// InstanceID tags every scraped sample. Required.
	InstanceID string

	// InstanceName is the optional display name; empty omits the label value.
	InstanceName string
}

type document struct {
	Global        globalConfig   `yaml:"global"`
	ScrapeConfigs []scrapeConfig `yaml:"scrape_configs"`
}

type globalConfig struct {
	ScrapeInterval     string `yaml:"scrape_interval"`
	EvaluationInterval string `yaml:"evaluation_interval"`
	ScrapeTimeout      string `yaml:"scrape_timeout"`
}

type scrapeConfig struct {
	JobName       string         `yaml:"job_name"`
	StaticConfigs []staticConfig `yaml:"static_configs"`
}

type staticConfig struct {
	Targets []string          `yaml:"targets"`
	Labels  map[string]string `yaml:"labels"`
}

// Render marshals the descriptor to Prometheus scrape config YAML.
func Render(d Descriptor) ([]byte, error) {
	if d.InstanceID == "" {
		return nil, fmt.Errorf("scrape descriptor requires an instance id")
	}
	if d.Port <= 0 {
		return nil, fmt.Errorf("scrape descriptor requires a positive port, got %d", d.Port)
	}

	interval := fmt.Sprintf("%ds", d.IntervalSecs)
	doc := document{
		Global: globalConfig{
			ScrapeInterval:     interval,
			EvaluationInterval: interval,
			ScrapeTimeout:      interval,
		},
		ScrapeConfigs: []scrapeConfig{
			{
				JobName: "dcgm_exporter",
				StaticConfigs: []staticConfig{
					{
						Targets: []string{fmt.Sprintf("localhost:%d", d.Port)},
						Labels: map[string]string{
							"InstanceId":   d.InstanceID,
							"InstanceName": d.InstanceName,
						},
					},
				},
			},
		},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal scrape descriptor: %w", err)
	}
	return data, nil
}

// Install renders the descriptor into stagingDir and copies it to dst with
// elevation.
func Install(ctx context.Context, r Runner, stagingDir, dst string, d Descriptor) error {
	data, err := Render(d)
	if err != nil {
		return err
	}
	staged := filepath.Join(stagingDir, "prometheus.yaml")
	if err := os.WriteFile(staged, data, 0o644); err != nil {
		return fmt.Errorf("stage scrape descriptor: %w", err)
	}
	if _, err := r.Run(ctx, sudoPath, "cp", staged, dst); err != nil {
		return fmt.Errorf("install scrape descriptor to %s: %w", dst, err)
	}
	return nil
}
