package setup

import (
	"context"

	"gpuwatch/internal/agent"
)

// Agent is the monitoring agent surface the orchestrator drives.
type Agent interface {
	Probe(ctx context.Context) (agent.Status, error)
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
	Append(ctx context.Context, path string) error
}

// Exporter manages the DCGM exporter sidecar container.
type Exporter interface {
	Ensure(ctx context.Context) error
	Verify(ctx context.Context) error
}

// Fragments materializes per-stage config fragments as files.
type Fragments interface {
	Materialize(status agent.ConfigStatus) (string, error)
}
