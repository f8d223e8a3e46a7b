// Package setup runs the staged, idempotent provisioning procedure: probe
// the agent's current configuration depth, apply only the missing stages in
// order within a single agent stop/start cycle, and verify the result.
//
// There is no rollback. A failed run leaves whatever stages were committed in
// place; a subsequent run picks up from there.
package setup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"gpuwatch/internal/agent"
)

// Orchestrator wires the collaborators of one provisioning run.
type Orchestrator struct {
	agent       Agent
	exporter    Exporter
	fragments   Fragments
	writeScrape func(ctx context.Context) error
	target      agent.ConfigStatus
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTarget stops the run at an earlier stage. Defaults to DCGM metrics.
func WithTarget(target agent.ConfigStatus) Option {
	return func(o *Orchestrator) { o.target = target }
}

// New creates an Orchestrator. writeScrape generates the exporter scrape
// descriptor; it runs only when the DCGM stage is applied.
func New(a Agent, e Exporter, f Fragments, writeScrape func(ctx context.Context) error, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agent:       a,
		exporter:    e,
		fragments:   f,
		writeScrape: writeScrape,
		target:      agent.StatusDCGMMetrics,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result summarizes one run.
type Result struct {
	Before  agent.Status
	After   agent.Status
	Applied []agent.ConfigStatus

	// AlreadyConfigured is set when the probe found nothing to do.
	AlreadyConfigured bool
}

// Run executes one provisioning pass. All decisions derive from a fresh
// probe — no state is carried across runs.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	var res Result

	before, err := o.agent.Probe(ctx)
	if err != nil {
		return res, err
	}
	res.Before = before
	slog.Info("Probed agent status.", "config", before.Config, "runtime", before.Runtime)

	stages := Plan(before.Config, o.target)
	if len(stages) == 0 && before.Runtime == agent.RuntimeRunning {
		res.After = before
		res.AlreadyConfigured = true
		slog.Info("Agent already configured and running, nothing to do.")
		return res, nil
	}

	// All pending stages are committed within a single stop/start cycle to
	// minimize agent downtime. When no stage is pending this degrades to a
	// plain restart of a stopped-but-configured agent.
	if err := o.agent.Stop(ctx); err != nil {
		return res, err
	}

	for _, st := range stages {
		slog.Info("Applying configuration stage.", "stage", st)

		if st == agent.StatusDCGMMetrics {
			if err := o.exporter.Ensure(ctx); err != nil {
				return res, err
			}
			if err := o.writeScrape(ctx); err != nil {
				return res, fmt.Errorf("write scrape descriptor: %w", err)
			}
		}

		path, err := o.fragments.Materialize(st)
		if err != nil {
			return res, fmt.Errorf("materialize fragment for %s: %w", st, err)
		}
		if err := o.agent.Append(ctx, path); err != nil {
			return res, err
		}
		res.Applied = append(res.Applied, st)
	}

	if err := o.agent.Start(ctx); err != nil {
		return res, err
	}

	if slices.Contains(res.Applied, agent.StatusDCGMMetrics) {
		// The exporter may need a moment before serving metrics; failure
		// here is informational only.
		if err := o.exporter.Verify(ctx); err != nil {
			slog.Warn("Exporter metrics endpoint not responding yet.", "err", err)
		}
	}

	after, err := o.agent.Probe(ctx)
	if err != nil {
		return res, err
	}
	res.After = after

	if after.Config < o.target {
		return res, fmt.Errorf("agent reports %s after setup, want %s; re-run to complete", after.Config, o.target)
	}
	if after.Runtime != agent.RuntimeRunning {
		return res, fmt.Errorf("agent is not running after setup")
	}

	slog.Info("Setup complete.", "config", after.Config, "runtime", after.Runtime, "stages_applied", len(res.Applied))
	return res, nil
}
