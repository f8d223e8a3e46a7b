package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Exporter.Port != 9400 {
		t.Errorf("Exporter.Port = %d, want 9400", cfg.Exporter.Port)
	}
	if cfg.General.PollingIntervalSecs != 30 {
		t.Errorf("PollingIntervalSecs = %d, want 30", cfg.General.PollingIntervalSecs)
	}
	if cfg.Agent.BaseDir != "/opt/aws/amazon-cloudwatch-agent" {
		t.Errorf("Agent.BaseDir = %q", cfg.Agent.BaseDir)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gpuwatch.yaml")
	content := `
general:
  instance_name: training-node-3
  polling_interval_secs: 15
exporter:
  port: 9401
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.General.InstanceName != "training-node-3" {
		t.Errorf("InstanceName = %q", cfg.General.InstanceName)
	}
	if cfg.General.PollingIntervalSecs != 15 {
		t.Errorf("PollingIntervalSecs = %d, want 15", cfg.General.PollingIntervalSecs)
	}
	if cfg.Exporter.Port != 9401 {
		t.Errorf("Port = %d, want 9401", cfg.Exporter.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Exporter.Image == "" {
		t.Error("Exporter.Image should keep its default")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gpuwatch.yaml")
	if err := os.WriteFile(path, []byte("general: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Load error = %v, want *ParseError", err)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"zero interval", "general:\n  polling_interval_secs: 0\n"},
		{"negative interval", "general:\n  polling_interval_secs: -5\n"},
		{"port out of range", "exporter:\n  port: 70000\n"},
		{"empty image", "exporter:\n  image: \"\"\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "gpuwatch.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load should reject invalid config")
			}
		})
	}
}
