package exporter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeDocker records calls and returns configured responses.
// Embeds client.APIClient so unused methods panic if called.
type fakeDocker struct {
	client.APIClient

	inspectResult types.ContainerJSON
	inspectErr    error
	startErr      error
	createErr     error

	createdConfig *container.Config
	createdHost   *container.HostConfig

	calls []string
}

func (f *fakeDocker) ContainerInspect(_ context.Context, _ string) (types.ContainerJSON, error) {
	f.calls = append(f.calls, "Inspect")
	return f.inspectResult, f.inspectErr
}

func (f *fakeDocker) ContainerStart(_ context.Context, _ string, _ container.StartOptions) error {
	f.calls = append(f.calls, "Start")
	return f.startErr
}

func (f *fakeDocker) ContainerCreate(_ context.Context, cfg *container.Config, hostCfg *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	f.calls = append(f.calls, "Create")
	f.createdConfig = cfg
	f.createdHost = hostCfg
	return container.CreateResponse{}, f.createErr
}

func running() types.ContainerJSON {
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			State: &types.ContainerState{Running: true},
		},
	}
}

func exited() types.ContainerJSON {
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			State: &types.ContainerState{Running: false},
		},
	}
}

func TestEnsure_ReusesRunningContainer(t *testing.T) {
	t.Parallel()

	docker := &fakeDocker{inspectResult: running()}
	c := New(docker, "/etc/gpuwatch/dcgm-counters.csv")

	if err := c.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	// Should inspect only — no create, no start.
	want := []string{"Inspect"}
	if !slices.Equal(docker.calls, want) {
		t.Errorf("calls = %v, want %v", docker.calls, want)
	}
}

func TestEnsure_StartsExitedContainer(t *testing.T) {
	t.Parallel()

	docker := &fakeDocker{inspectResult: exited()}
	c := New(docker, "/etc/gpuwatch/dcgm-counters.csv")

	if err := c.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	// Should inspect then start — no create.
	want := []string{"Inspect", "Start"}
	if !slices.Equal(docker.calls, want) {
		t.Errorf("calls = %v, want %v", docker.calls, want)
	}
}

func TestEnsure_CreatesWhenMissing(t *testing.T) {
	t.Parallel()

	docker := &fakeDocker{inspectErr: errdefs.ErrNotFound}
	c := New(docker, "/etc/gpuwatch/dcgm-counters.csv",
		WithPort(9400),
		WithInterval(30*time.Second),
	)

	if err := c.Ensure(context.Background()); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	want := []string{"Inspect", "Create", "Start"}
	if !slices.Equal(docker.calls, want) {
		t.Fatalf("calls = %v, want %v", docker.calls, want)
	}

	// The launch shape is a fixed external contract.
	host := docker.createdHost
	if !host.Privileged {
		t.Error("container must be privileged")
	}
	if host.PidMode != "host" {
		t.Errorf("PidMode = %q, want host", host.PidMode)
	}
	if host.RestartPolicy.Name != container.RestartPolicyAlways {
		t.Errorf("RestartPolicy = %q, want always", host.RestartPolicy.Name)
	}
	if len(host.DeviceRequests) != 1 || host.DeviceRequests[0].Count != -1 {
		t.Errorf("DeviceRequests = %+v, want all GPUs", host.DeviceRequests)
	}
	if len(host.Mounts) != 2 {
		t.Fatalf("Mounts = %+v, want /proc and counters binds", host.Mounts)
	}
	if host.Mounts[0].Source != "/proc" || host.Mounts[0].Target != "/proc" {
		t.Errorf("first mount = %+v, want /proc bind", host.Mounts[0])
	}
	if host.Mounts[1].Target != countersTarget {
		t.Errorf("counters mount target = %q, want %q", host.Mounts[1].Target, countersTarget)
	}
	if _, ok := host.PortBindings["9400/tcp"]; !ok {
		t.Errorf("PortBindings = %+v, want 9400/tcp published", host.PortBindings)
	}

	if !slices.Contains(docker.createdConfig.Env, "DCGM_EXPORTER_INTERVAL=30000") {
		t.Errorf("Env = %v, want DCGM_EXPORTER_INTERVAL=30000", docker.createdConfig.Env)
	}
}

func TestEnsure_WrapsFailuresAsLaunchError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		docker *fakeDocker
	}{
		{"inspect fails", &fakeDocker{inspectErr: errors.New("daemon unreachable")}},
		{"create fails", &fakeDocker{inspectErr: errdefs.ErrNotFound, createErr: fmt.Errorf("no such image")}},
		{"start fails", &fakeDocker{inspectResult: exited(), startErr: fmt.Errorf("oci runtime error")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := New(tc.docker, "/etc/gpuwatch/dcgm-counters.csv")
			err := c.Ensure(context.Background())

			var lerr *LaunchError
			if !errors.As(err, &lerr) {
				t.Fatalf("Ensure error = %v, want *LaunchError", err)
			}
		})
	}
}

func TestRunning(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		docker *fakeDocker
		want   bool
	}{
		{"running", &fakeDocker{inspectResult: running()}, true},
		{"exited", &fakeDocker{inspectResult: exited()}, false},
		{"absent", &fakeDocker{inspectErr: errdefs.ErrNotFound}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := New(tc.docker, "/etc/gpuwatch/dcgm-counters.csv")
			got, err := c.Running(context.Background())
			if err != nil {
				t.Fatalf("Running: %v", err)
			}
			if got != tc.want {
				t.Errorf("Running = %v, want %v", got, tc.want)
			}
		})
	}
}
