package fragment

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gpuwatch/internal/agent"
)

// Each fragment must carry the marker metric the status prober scans for,
// and must be valid JSON the agent ctl will accept.
func TestFor_FragmentsCarryStageMarkers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status agent.ConfigStatus
		marker string
	}{
		{agent.StatusBaseMetrics, "mem_available"},
		{agent.StatusSMIMetrics, "utilization_gpu"},
		{agent.StatusDCGMMetrics, "DCGM_FI_PROF_DRAM_ACTIVE"},
	}

	for _, tc := range tests {
		t.Run(tc.status.String(), func(t *testing.T) {
			t.Parallel()

			data, err := For(tc.status)
			if err != nil {
				t.Fatalf("For(%s): %v", tc.status, err)
			}
			if !strings.Contains(string(data), tc.marker) {
				t.Errorf("fragment for %s does not contain marker %q", tc.status, tc.marker)
			}
			if !json.Valid(data) {
				t.Errorf("fragment for %s is not valid JSON", tc.status)
			}
		})
	}
}

func TestFor_NoFragmentForNotConfigured(t *testing.T) {
	t.Parallel()

	if _, err := For(agent.StatusNotConfigured); err == nil {
		t.Error("For(StatusNotConfigured) should fail")
	}
}

func TestDCGMFragmentReferencesScrapeDescriptor(t *testing.T) {
	t.Parallel()

	data, err := For(agent.StatusDCGMMetrics)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "/var/prometheus.yaml") {
		t.Error("DCGM fragment should reference the generated scrape descriptor")
	}
}

func TestMaterialize_WritesFragmentFile(t *testing.T) {
	t.Parallel()

	lib := NewLibrary(filepath.Join(t.TempDir(), "work"))

	path, err := lib.Materialize(agent.StatusBaseMetrics)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read materialized fragment: %v", err)
	}
	want, _ := For(agent.StatusBaseMetrics)
	if !bytes.Equal(data, want) {
		t.Error("materialized fragment differs from embedded content")
	}
}

func TestEnsureCounters(t *testing.T) {
	t.Parallel()

	t.Run("writes default when absent", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "etc", "dcgm-counters.csv")
		if err := EnsureCounters(path); err != nil {
			t.Fatalf("EnsureCounters: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "DCGM_FI_DEV_GPU_UTIL") {
			t.Error("default counters CSV should list DCGM_FI_DEV_GPU_UTIL")
		}
	})

	t.Run("keeps existing file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.csv")
		custom := []byte("DCGM_FI_DEV_GPU_TEMP, gauge, GPU temperature (in C).\n")
		if err := os.WriteFile(path, custom, 0o644); err != nil {
			t.Fatal(err)
		}
		if err := EnsureCounters(path); err != nil {
			t.Fatalf("EnsureCounters: %v", err)
		}
		data, _ := os.ReadFile(path)
		if !bytes.Equal(data, custom) {
			t.Error("existing counters file should be left untouched")
		}
	})
}
