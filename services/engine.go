package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzeds/cookbook/common"
	"github.com/matzeds/cookbook/compose"
)

// ErrUnhealthy is returned when a service's health check never passes
// within its retry budget. Dependents on that edge are left unstarted;
// this is fatal and needs operator intervention.
var ErrUnhealthy = errors.New("service never became healthy")

const stopTimeout = 10 * time.Second

// Engine sequences a stack per its dependency graph: health-gated edges
// block until the target's first successful probe, plain edges only wait
// for the start call to be issued.
type Engine struct {
	rt       Runtime
	project  string
	manifest *compose.Manifest

	// health poll cadence; tests shrink it
	poll time.Duration
}

// NewEngine builds an engine for one project.
func NewEngine(rt Runtime, project string, m *compose.Manifest) *Engine {
	return &Engine{rt: rt, project: project, manifest: m, poll: time.Second}
}

func (e *Engine) networkName() string { return e.project + "_default" }

func (e *Engine) volumeName(name string) string { return e.project + "_" + name }

func (e *Engine) containerName(service string) string {
	return fmt.Sprintf("%s-%s-1", e.project, service)
}

// Up starts every service. Siblings with no edge between them start in
// any relative order; each service waits only for its own dependency
// conditions. Returns ErrUnhealthy (wrapped) if a health-gated target
// exhausts its budget.
func (e *Engine) Up(ctx context.Context) error {
	if _, err := e.manifest.TopoSort(); err != nil {
		return err
	}

	if err := e.rt.EnsureNetwork(ctx, e.networkName()); err != nil {
		return fmt.Errorf("network %s: %w", e.networkName(), err)
	}
	for _, name := range e.manifest.VolumeNames() {
		if err := e.rt.EnsureVolume(ctx, e.volumeName(name)); err != nil {
			return fmt.Errorf("volume %s: %w", name, err)
		}
	}

	// Existing containers are reused when their config hash still
	// matches; anything stale gets recreated.
	current, err := e.rt.ListContainers(ctx, e.project)
	if err != nil {
		return err
	}
	existing := map[string]ContainerInfo{}
	for _, c := range current {
		existing[c.Service] = c
	}

	// Only gate on health where an edge actually requires it.
	needsHealth := map[string]bool{}
	for _, svc := range e.manifest.Services {
		for dep, cond := range svc.DependsOn {
			if cond.Condition == compose.ConditionHealthy {
				needsHealth[dep] = true
			}
		}
	}

	started := map[string]chan struct{}{}
	healthy := map[string]chan struct{}{}
	for _, name := range e.manifest.ServiceNames() {
		started[name] = make(chan struct{})
		healthy[name] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range e.manifest.ServiceNames() {
		name := name
		svc := e.manifest.Services[name]
		g.Go(func() error {
			for _, dep := range dependencyNames(svc) {
				cond := svc.DependsOn[dep]
				gate := started[dep]
				if cond.Condition == compose.ConditionHealthy {
					gate = healthy[dep]
				}
				select {
				case <-gate:
				case <-gctx.Done():
					common.WarnLog("up: %s not started (%s did not become ready)", name, dep)
					return gctx.Err()
				}
			}

			spec := e.specFor(name, svc)
			spec.ConfigHash = configHash(spec)

			var id string
			if prev, ok := existing[name]; ok {
				if prev.ConfigHash == spec.ConfigHash && prev.State == "running" {
					id = prev.ID
					common.InfoLog("up: %s is up to date", name)
				} else if err := e.removeContainer(gctx, prev); err != nil {
					return err
				}
			}
			if id == "" {
				created, err := e.rt.CreateContainer(gctx, spec)
				if err != nil {
					return err
				}
				id = created
				if err := e.rt.StartContainer(gctx, id); err != nil {
					return fmt.Errorf("start %s: %w", name, err)
				}
				common.InfoLog("up: started %s", name)
			}
			close(started[name])

			if needsHealth[name] {
				if err := e.awaitHealthy(gctx, name, id, svc.Healthcheck); err != nil {
					return err
				}
				common.InfoLog("up: %s is healthy", name)
				close(healthy[name])
			}
			return nil
		})
	}
	return g.Wait()
}

// awaitHealthy polls the container until its first successful probe or
// until the budget (start_period + retries * (interval + timeout)) runs
// out.
func (e *Engine) awaitHealthy(ctx context.Context, name, id string, hc *compose.Healthcheck) error {
	budget := hc.Budget()
	hctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		st, err := e.rt.InspectService(hctx, id)
		if err == nil {
			if st.Health == "healthy" {
				return nil
			}
			if !st.Running && st.Status == "exited" {
				return fmt.Errorf("%s exited with code %d: %w", name, st.ExitCode, ErrUnhealthy)
			}
		}

		select {
		case <-ticker.C:
		case <-hctx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%s: health check did not pass within %s: %w", name, budget, ErrUnhealthy)
		}
	}
}

// Down stops and removes the stack's containers in reverse dependency
// order and removes the network. Named volumes survive unless
// removeVolumes is set; destroying data requires that explicit ask.
func (e *Engine) Down(ctx context.Context, removeVolumes bool) error {
	containers, err := e.rt.ListContainers(ctx, e.project)
	if err != nil {
		return err
	}
	byService := map[string][]ContainerInfo{}
	for _, c := range containers {
		byService[c.Service] = append(byService[c.Service], c)
	}

	order, err := e.manifest.TopoSort()
	if err != nil {
		return err
	}
	for i := len(order) - 1; i >= 0; i-- {
		for _, c := range byService[order[i]] {
			if err := e.removeContainer(ctx, c); err != nil {
				return err
			}
			delete(byService, order[i])
		}
	}
	// Orphans from services no longer in the manifest.
	for _, leftover := range byService {
		for _, c := range leftover {
			if err := e.removeContainer(ctx, c); err != nil {
				return err
			}
		}
	}

	if err := e.rt.RemoveNetwork(ctx, e.networkName()); err != nil {
		common.WarnLog("down: remove network %s: %v", e.networkName(), err)
	}

	if removeVolumes {
		for _, name := range e.manifest.VolumeNames() {
			if err := e.rt.RemoveVolume(ctx, e.volumeName(name)); err != nil {
				return fmt.Errorf("remove volume %s: %w", name, err)
			}
			common.InfoLog("down: removed volume %s", e.volumeName(name))
		}
	}
	return nil
}

func (e *Engine) removeContainer(ctx context.Context, c ContainerInfo) error {
	if c.State == "running" {
		if err := e.rt.StopContainer(ctx, c.ID, stopTimeout); err != nil {
			return fmt.Errorf("stop %s: %w", c.Name, err)
		}
	}
	if err := e.rt.RemoveContainer(ctx, c.ID); err != nil {
		return fmt.Errorf("remove %s: %w", c.Name, err)
	}
	common.InfoLog("down: removed %s", c.Name)
	return nil
}

// Pull fetches the image of every service that does not build locally.
func (e *Engine) Pull(ctx context.Context) error {
	for _, name := range e.manifest.ServiceNames() {
		svc := e.manifest.Services[name]
		if svc.Image == "" || svc.Build != nil {
			continue
		}
		if err := e.rt.PullImage(ctx, svc.Image); err != nil {
			return err
		}
	}
	return nil
}

// Restart cycles the stack while keeping named volumes, so data in the
// database volume survives.
func (e *Engine) Restart(ctx context.Context) error {
	if err := e.Down(ctx, false); err != nil {
		return err
	}
	return e.Up(ctx)
}

// PS lists the project's containers with their health state.
func (e *Engine) PS(ctx context.Context) ([]ContainerInfo, error) {
	return e.rt.ListContainers(ctx, e.project)
}

// specFor renders a manifest service into a runtime container spec.
func (e *Engine) specFor(name string, svc *compose.Service) ContainerSpec {
	env := make([]string, 0, len(svc.Environment))
	for k, v := range svc.Environment {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)

	binds := make([]string, 0, len(svc.Volumes))
	for _, vol := range svc.Volumes {
		source, rest, _ := strings.Cut(vol, ":")
		if _, declared := e.manifest.Volumes[source]; declared {
			source = e.volumeName(source)
		}
		binds = append(binds, source+":"+rest)
	}

	image := svc.Image
	if image == "" && svc.Build != nil {
		image = e.project + "-" + name
	}

	return ContainerSpec{
		Name:        e.containerName(name),
		Project:     e.project,
		Service:     name,
		Image:       image,
		Env:         env,
		Ports:       svc.Ports,
		Binds:       binds,
		Network:     e.networkName(),
		Restart:     svc.Restart,
		Healthcheck: svc.Healthcheck,
	}
}

func dependencyNames(svc *compose.Service) []string {
	deps := make([]string, 0, len(svc.DependsOn))
	for dep := range svc.DependsOn {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}
