// Package fragment holds the static monitoring configuration fragments, one
// per configuration stage. Fragments are merged additively into the agent's
// persisted configuration via append-config; their content is fixed at build
// time.
package fragment

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gpuwatch/internal/agent"
)

//go:embed fragments
var files embed.FS

var fragmentFiles = map[agent.ConfigStatus]string{
	agent.StatusBaseMetrics: "base.json",
	agent.StatusSMIMetrics:  "nvidia_smi.json",
	agent.StatusDCGMMetrics: "nvidia_dcgm.json",
}

// For returns the config fragment establishing the given status. Pure lookup.
func For(status agent.ConfigStatus) ([]byte, error) {
	name, ok := fragmentFiles[status]
	if !ok {
		return nil, fmt.Errorf("no config fragment for status %s", status)
	}
	data, err := files.ReadFile("fragments/" + name)
	if err != nil {
		return nil, fmt.Errorf("read embedded fragment %s: %w", name, err)
	}
	return data, nil
}

// Library materializes fragments into a working directory so the agent ctl
// can consume them as file: URIs.
type Library struct {
	dir string
}

// NewLibrary creates a Library writing into dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Materialize writes the fragment for status into the library dir and
// returns the file path.
func (l *Library) Materialize(status agent.ConfigStatus) (string, error) {
	name, ok := fragmentFiles[status]
	if !ok {
		return "", fmt.Errorf("no config fragment for status %s", status)
	}
	data, err := For(status)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create fragment dir: %w", err)
	}
	path := filepath.Join(l.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write fragment %s: %w", name, err)
	}
	return path, nil
}

// DefaultCounters returns the embedded DCGM counters CSV consumed by the
// exporter container.
func DefaultCounters() []byte {
	data, err := files.ReadFile("fragments/dcgm-counters.csv")
	if err != nil {
		// Embedded file — can only fail if the build is broken.
		panic(err)
	}
	return data
}

// EnsureCounters writes the default counters CSV to path when no file exists
// there yet. An existing file is left untouched.
func EnsureCounters(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat counters file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create counters dir: %w", err)
	}
	if err := os.WriteFile(path, DefaultCounters(), 0o644); err != nil {
		return fmt.Errorf("write counters file: %w", err)
	}
	return nil
}
