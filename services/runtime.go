package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/matzeds/cookbook/common"
	"github.com/matzeds/cookbook/compose"
)

// Labels the engine stamps on everything it creates, so containers can
// be found again across restarts.
const (
	LabelProject    = "cookbook.project"
	LabelService    = "cookbook.service"
	LabelConfigHash = "cookbook.config-hash"
)

// ContainerSpec is everything the runtime needs to create one service
// container.
type ContainerSpec struct {
	Name        string
	Project     string
	Service     string
	Image       string
	Env         []string
	Ports       []string
	Binds       []string
	Network     string
	Restart     string
	Healthcheck *compose.Healthcheck
	ConfigHash  string
}

// ContainerInfo describes an existing container belonging to a project.
type ContainerInfo struct {
	ID         string
	Name       string
	Service    string
	Image      string
	State      string
	Health     string
	ConfigHash string
}

// ServiceState is a point-in-time view of a running container.
type ServiceState struct {
	Running  bool
	ExitCode int
	Status   string
	// Health is "none" when the container declares no probe, otherwise
	// starting/healthy/unhealthy as reported by the engine.
	Health string
}

// Runtime abstracts the container engine so the startup engine can be
// exercised without Docker.
type Runtime interface {
	EnsureNetwork(ctx context.Context, name string) error
	RemoveNetwork(ctx context.Context, name string) error
	EnsureVolume(ctx context.Context, name string) error
	RemoveVolume(ctx context.Context, name string) error
	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, id string) error
	InspectService(ctx context.Context, id string) (ServiceState, error)
	ListContainers(ctx context.Context, project string) ([]ContainerInfo, error)
	PullImage(ctx context.Context, ref string) error
	Close() error
}

// dockerRuntime is the production Runtime on the Docker SDK.
type dockerRuntime struct {
	cli *client.Client
}

// NewDockerRuntime connects to the engine configured by the usual
// DOCKER_HOST environment and verifies it responds.
func NewDockerRuntime(ctx context.Context) (Runtime, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := cli.Ping(pctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker ping failed: %w", err)
	}
	return &dockerRuntime{cli: cli}, nil
}

func (d *dockerRuntime) Close() error { return d.cli.Close() }

func (d *dockerRuntime) EnsureNetwork(ctx context.Context, name string) error {
	nets, err := d.cli.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return err
	}
	for _, n := range nets {
		if n.Name == name {
			return nil
		}
	}
	_, err = d.cli.NetworkCreate(ctx, name, network.CreateOptions{})
	return err
}

func (d *dockerRuntime) RemoveNetwork(ctx context.Context, name string) error {
	err := d.cli.NetworkRemove(ctx, name)
	if client.IsErrNotFound(err) {
		return nil
	}
	return err
}

func (d *dockerRuntime) EnsureVolume(ctx context.Context, name string) error {
	// VolumeCreate is idempotent for an existing name.
	_, err := d.cli.VolumeCreate(ctx, volume.CreateOptions{Name: name})
	return err
}

func (d *dockerRuntime) RemoveVolume(ctx context.Context, name string) error {
	err := d.cli.VolumeRemove(ctx, name, false)
	if client.IsErrNotFound(err) {
		return nil
	}
	return err
}

func (d *dockerRuntime) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	exposed, bindings, err := nat.ParsePortSpecs(spec.Ports)
	if err != nil {
		return "", fmt.Errorf("ports for %s: %w", spec.Service, err)
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          spec.Env,
		ExposedPorts: exposed,
		Labels: map[string]string{
			LabelProject: spec.Project,
			LabelService: spec.Service,
		},
	}
	if spec.ConfigHash != "" {
		cfg.Labels[LabelConfigHash] = spec.ConfigHash
	}
	if hc := spec.Healthcheck; hc != nil {
		cfg.Healthcheck = &container.HealthConfig{
			Test:        hc.Test,
			Interval:    hc.EffectiveInterval(),
			Timeout:     hc.EffectiveTimeout(),
			Retries:     hc.EffectiveRetries(),
			StartPeriod: time.Duration(hc.StartPeriod),
		}
	}

	hostCfg := &container.HostConfig{
		Binds:         spec.Binds,
		PortBindings:  bindings,
		RestartPolicy: restartPolicy(spec.Restart),
		NetworkMode:   container.NetworkMode(spec.Network),
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if client.IsErrNotFound(err) {
		// Image not present locally; pull once and retry.
		if perr := d.PullImage(ctx, spec.Image); perr != nil {
			return "", perr
		}
		resp, err = d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	}
	if err != nil {
		return "", fmt.Errorf("create %s: %w", spec.Service, err)
	}
	return resp.ID, nil
}

func (d *dockerRuntime) PullImage(ctx context.Context, ref string) error {
	common.InfoLog("pulling image %s", ref)
	reader, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull %s: %w", ref, err)
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (d *dockerRuntime) StartContainer(ctx context.Context, id string) error {
	return d.cli.ContainerStart(ctx, id, container.StartOptions{})
}

func (d *dockerRuntime) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	return d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs})
}

func (d *dockerRuntime) RemoveContainer(ctx context.Context, id string) error {
	err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if client.IsErrNotFound(err) {
		return nil
	}
	return err
}

func (d *dockerRuntime) InspectService(ctx context.Context, id string) (ServiceState, error) {
	ci, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ServiceState{}, err
	}

	st := ServiceState{Health: "none"}
	if ci.State != nil {
		st.Running = ci.State.Running
		st.ExitCode = ci.State.ExitCode
		st.Status = ci.State.Status
		if ci.State.Health != nil {
			st.Health = ci.State.Health.Status
		}
	}
	return st, nil
}

func (d *dockerRuntime) ListContainers(ctx context.Context, project string) ([]ContainerInfo, error) {
	flt := filters.NewArgs(filters.Arg("label", LabelProject+"="+project))
	list, err := d.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: flt})
	if err != nil {
		return nil, err
	}

	out := make([]ContainerInfo, 0, len(list))
	for _, c := range list {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		info := ContainerInfo{
			ID:         c.ID,
			Name:       name,
			Service:    c.Labels[LabelService],
			Image:      c.Image,
			State:      c.State,
			Health:     "none",
			ConfigHash: c.Labels[LabelConfigHash],
		}
		// The summary state folds health into the status string,
		// e.g. "Up 5 seconds (healthy)".
		if strings.Contains(c.Status, "(healthy)") {
			info.Health = "healthy"
		} else if strings.Contains(c.Status, "(unhealthy)") {
			info.Health = "unhealthy"
		} else if strings.Contains(c.Status, "(health: starting)") {
			info.Health = "starting"
		}
		out = append(out, info)
	}
	return out, nil
}

func restartPolicy(name string) container.RestartPolicy {
	switch name {
	case "always":
		return container.RestartPolicy{Name: container.RestartPolicyAlways}
	case "unless-stopped":
		return container.RestartPolicy{Name: container.RestartPolicyUnlessStopped}
	case "on-failure":
		return container.RestartPolicy{Name: container.RestartPolicyOnFailure}
	default:
		return container.RestartPolicy{Name: container.RestartPolicyDisabled}
	}
}
