// Package agent drives the CloudWatch monitoring agent through its control
// CLI: probing configuration and runtime status, and the stop / append-config
// / start cycle used to commit new configuration.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const (
	// DefaultBaseDir is the agent's install prefix on EC2 hosts.
	DefaultBaseDir = "/opt/aws/amazon-cloudwatch-agent"

	ctlRelPath    = "bin/amazon-cloudwatch-agent-ctl"
	dropInRelPath = "etc/amazon-cloudwatch-agent.d"

	// agentMode is passed as -m to every ctl invocation.
	agentMode = "ec2"

	// The ctl manages root-owned state under the install prefix and must run
	// elevated; the tool itself runs as the regular operator user.
	sudoPath = "/usr/bin/sudo"
)

// Configuration depth is not reported by the ctl; it is derived by scanning
// the agent's drop-in config dir for per-stage marker metric names, deepest
// stage first.
var stageMarkers = []struct {
	status ConfigStatus
	needle string
}{
	{StatusDCGMMetrics, "DCGM_FI_PROF_DRAM_ACTIVE"},
	{StatusSMIMetrics, "utilization_gpu"},
	{StatusBaseMetrics, "mem_available"},
}

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Controller wraps the agent ctl binary.
type Controller struct {
	runner  Runner
	baseDir string
}

// Option configures a Controller.
type Option func(*Controller)

// WithRunner overrides the command runner. Used by tests.
func WithRunner(r Runner) Option {
	return func(c *Controller) { c.runner = r }
}

// NewController creates a Controller for the agent installed under baseDir.
func NewController(baseDir string, opts ...Option) *Controller {
	if baseDir == "" {
		baseDir = DefaultBaseDir
	}
	c := &Controller{
		runner:  ExecRunner{},
		baseDir: baseDir,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) ctlPath() string {
	return filepath.Join(c.baseDir, ctlRelPath)
}

// ctlStatus is the JSON document printed by `ctl -a status`.
type ctlStatus struct {
	Status       string `json:"status"`
	ConfigStatus string `json:"configstatus"`
	Version      string `json:"version"`
}

// Probe queries the agent for its current status. It never mutates anything.
// A missing agent install or unparseable status output is a *ProbeError.
func (c *Controller) Probe(ctx context.Context) (Status, error) {
	if _, err := os.Stat(filepath.Join(c.baseDir, "bin")); err != nil {
		return Status{}, &ProbeError{Err: fmt.Errorf("agent not installed under %s: %w", c.baseDir, err)}
	}

	out, err := c.runner.Run(ctx, sudoPath, c.ctlPath(), "-m", agentMode, "-a", "status")
	if err != nil {
		return Status{}, &ProbeError{Err: fmt.Errorf("run status query: %w", err)}
	}

	var raw ctlStatus
	if err := json.Unmarshal(out, &raw); err != nil {
		return Status{}, &ProbeError{Err: fmt.Errorf("parse status output: %w", err)}
	}

	runtime, err := parseRuntime(raw.Status)
	if err != nil {
		return Status{}, &ProbeError{Err: err}
	}
	st := Status{Runtime: runtime}

	switch raw.ConfigStatus {
	case "configured":
		st.Config = c.scanConfigDepth()
	case "not configured", "":
		st.Config = StatusNotConfigured
	default:
		// Stopping and reconfiguring an agent whose state we cannot read is
		// not safe; refuse and leave it to the operator.
		return Status{}, &ProbeError{Err: fmt.Errorf("unrecognized agent configstatus %q", raw.ConfigStatus)}
	}
	return st, nil
}

func parseRuntime(s string) (RuntimeStatus, error) {
	switch s {
	case "running":
		return RuntimeRunning, nil
	case "stopped":
		return RuntimeStopped, nil
	default:
		return 0, fmt.Errorf("unrecognized agent runtime status %q", s)
	}
}

// scanConfigDepth inspects the agent's drop-in config dir and reports the
// deepest stage whose marker metric appears in any applied config document.
func (c *Controller) scanConfigDepth() ConfigStatus {
	dir := filepath.Join(c.baseDir, dropInRelPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Debug("No agent drop-in config dir.", "dir", dir, "err", err)
		return StatusNotConfigured
	}

	var contents strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("Skipping unreadable agent config file.", "file", entry.Name(), "err", err)
			continue
		}
		contents.Write(data)
	}

	applied := contents.String()
	for _, m := range stageMarkers {
		if strings.Contains(applied, m.needle) {
			return m.status
		}
	}
	return StatusNotConfigured
}

// Stop stops the agent. Stopping an already-stopped agent is a no-op at the
// ctl level; a non-zero exit is still fatal.
func (c *Controller) Stop(ctx context.Context) error {
	return c.exec(ctx, "stop", "-m", agentMode, "-a", "stop")
}

// Start starts the agent with whatever configuration is currently committed.
func (c *Controller) Start(ctx context.Context) error {
	return c.exec(ctx, "start", "-m", agentMode, "-a", "start")
}

// Append merges the config document at path into the agent's persisted
// configuration. The agent should be stopped when appending.
func (c *Controller) Append(ctx context.Context, path string) error {
	return c.exec(ctx, "append-config", "-a", "append-config", "-m", agentMode, "-c", "file:"+path)
}

func (c *Controller) exec(ctx context.Context, op string, args ...string) error {
	slog.Info("Invoking agent ctl.", "op", op)
	out, err := c.runner.Run(ctx, sudoPath, append([]string{c.ctlPath()}, args...)...)
	if err != nil {
		cmdErr := &CommandError{Op: op, Err: err, Output: strings.TrimSpace(string(out))}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			cmdErr.Output = strings.TrimSpace(string(exitErr.Stderr))
		}
		return cmdErr
	}
	return nil
}
