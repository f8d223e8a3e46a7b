// Package preflight verifies host prerequisites before any configuration is
// mutated: NVIDIA tooling present, docker reachable, instance metadata
// resolvable, and not running as root. Privileged operations elevate via
// sudo on their own; a root login is refused.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gpuwatch/internal/imds"

	"github.com/docker/docker/client"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Checks runs the ordered prerequisite checks. Any failure aborts the run
// before anything is mutated.
type Checks struct {
	Runner Runner
	Docker client.APIClient
	Meta   *imds.Client

	// euid is swappable for tests; defaults to os.Geteuid.
	euid func() int
}

// New assembles the preflight checks.
func New(runner Runner, docker client.APIClient, meta *imds.Client) *Checks {
	return &Checks{
		Runner: runner,
		Docker: docker,
		Meta:   meta,
		euid:   os.Geteuid,
	}
}

// Run executes all checks in order and returns the first failure.
func (c *Checks) Run(ctx context.Context) error {
	if c.euid() == 0 {
		return fmt.Errorf("refusing to run as root; run as the regular operator user")
	}

	if _, err := c.Runner.Run(ctx, "nvidia-smi"); err != nil {
		return fmt.Errorf("nvidia-smi not available, is the NVIDIA driver installed: %w", err)
	}
	slog.Debug("nvidia-smi check passed.")

	if _, err := c.Runner.Run(ctx, "dcgmi", "discovery", "-l"); err != nil {
		return fmt.Errorf("dcgmi not available, is DCGM installed: %w", err)
	}
	slog.Debug("dcgmi check passed.")

	if _, err := c.Docker.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}
	slog.Debug("docker daemon reachable.")

	id, err := c.Meta.InstanceID(ctx)
	if err != nil {
		return fmt.Errorf("resolve local instance-id: %w", err)
	}
	slog.Debug("Instance metadata resolvable.", "instance_id", id)

	return nil
}
