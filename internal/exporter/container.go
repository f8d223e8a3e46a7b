// Package exporter manages the DCGM exporter sidecar container that exposes
// GPU telemetry on a local HTTP endpoint for the monitoring agent to scrape.
package exporter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	DefaultImage         = "nvcr.io/nvidia/k8s/dcgm-exporter:3.3.5-3.4.1-ubuntu22.04"
	DefaultContainerName = "dcgm-exporter"
	DefaultPort          = 9400

	// countersTarget is where the exporter image expects its counters CSV.
	countersTarget = "/etc/dcgm-exporter/default-counters.csv"
)

// LaunchError reports that the exporter container could not be brought up.
// Fatal for the DCGM stage; earlier applied stages are unaffected.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch dcgm exporter container: %v", e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Container runs the DCGM exporter as a Docker container. The container is
// created once with restart-always and then left running indefinitely; it is
// never updated or removed by this tool.
type Container struct {
	docker       client.APIClient
	image        string
	name         string
	port         int
	countersFile string
	interval     time.Duration
	metricsURL   string
}

// Option configures a Container.
type Option func(*Container)

func WithImage(img string) Option {
	return func(c *Container) { c.image = img }
}

func WithContainerName(name string) Option {
	return func(c *Container) { c.name = name }
}

func WithPort(port int) Option {
	return func(c *Container) { c.port = port }
}

// WithInterval sets the exporter's collection interval.
func WithInterval(d time.Duration) Option {
	return func(c *Container) { c.interval = d }
}

// WithMetricsURL overrides the metrics endpoint probed by Verify. Used by tests.
func WithMetricsURL(url string) Option {
	return func(c *Container) { c.metricsURL = url }
}

// New creates a Container manager. countersFile is the host path of the DCGM
// counters CSV bind-mounted into the container.
func New(docker client.APIClient, countersFile string, opts ...Option) *Container {
	c := &Container{
		docker:       docker,
		image:        DefaultImage,
		name:         DefaultContainerName,
		port:         DefaultPort,
		countersFile: countersFile,
		interval:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metricsURL == "" {
		c.metricsURL = fmt.Sprintf("http://localhost:%d/metrics", c.port)
	}
	return c
}

// Name returns the managed container's name.
func (c *Container) Name() string { return c.name }

// Running reports whether the exporter container currently exists and is
// running.
func (c *Container) Running(ctx context.Context) (bool, error) {
	info, err := c.docker.ContainerInspect(ctx, c.name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("inspect exporter container: %w", err)
	}
	return info.State != nil && info.State.Running, nil
}

// Ensure brings the exporter container up. If it is already running it is
// reused as-is (no health check beyond the running state). If it exists but
// has exited it is started. Only when no container exists is one created.
func (c *Container) Ensure(ctx context.Context) error {
	info, err := c.docker.ContainerInspect(ctx, c.name)
	if err == nil {
		if info.State != nil && info.State.Running {
			slog.Info("Reusing running exporter container.", "name", c.name)
			return nil
		}

		if err := c.docker.ContainerStart(ctx, c.name, container.StartOptions{}); err != nil {
			return &LaunchError{Err: fmt.Errorf("start existing container: %w", err)}
		}
		slog.Info("Started existing exporter container.", "name", c.name)
		return nil
	}

	if !errdefs.IsNotFound(err) {
		return &LaunchError{Err: fmt.Errorf("inspect container: %w", err)}
	}

	if err := c.createAndStart(ctx); err != nil {
		return &LaunchError{Err: err}
	}

	slog.Info("Exporter container started.", "name", c.name, "image", c.image, "port", c.port)
	return nil
}

func (c *Container) createAndStart(ctx context.Context) error {
	exposed := nat.Port(fmt.Sprintf("%d/tcp", c.port))

	containerCfg := &container.Config{
		Image: c.image,
		Env: []string{
			fmt.Sprintf("DCGM_EXPORTER_INTERVAL=%d", c.interval.Milliseconds()),
		},
		ExposedPorts: nat.PortSet{exposed: struct{}{}},
	}
	hostCfg := &container.HostConfig{
		Privileged: true,
		PidMode:    container.PidMode("host"),
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyAlways,
		},
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: "/proc",
				Target: "/proc",
			},
			{
				Type:   mount.TypeBind,
				Source: c.countersFile,
				Target: countersTarget,
			},
		},
		PortBindings: nat.PortMap{
			exposed: []nat.PortBinding{
				{HostPort: fmt.Sprintf("%d", c.port)},
			},
		},
		Resources: container.Resources{
			DeviceRequests: []container.DeviceRequest{
				{
					// All GPUs visible, like `docker run --gpus all`.
					Count:        -1,
					Capabilities: [][]string{{"gpu"}},
				},
			},
		},
	}

	_, err := c.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, (*ocispec.Platform)(nil), c.name)
	if err != nil {
		if !errdefs.IsNotFound(err) {
			return fmt.Errorf("create container: %w", err)
		}
		if err := c.pullImage(ctx); err != nil {
			return err
		}
		if _, err = c.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, c.name); err != nil {
			return fmt.Errorf("create container after pull: %w", err)
		}
	}

	if err := c.docker.ContainerStart(ctx, c.name, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

func (c *Container) pullImage(ctx context.Context) error {
	slog.Info("Pulling exporter image.", "image", c.image)
	resp, err := c.docker.ImagePull(ctx, c.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull exporter image: %w", err)
	}
	defer resp.Close()
	// Drain the pull output to completion.
	if _, err := io.Copy(io.Discard, resp); err != nil {
		return fmt.Errorf("pull exporter image: read response: %w", err)
	}
	return nil
}
