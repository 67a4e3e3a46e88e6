package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzeds/cookbook/compose"
)

// fakeRuntime is an in-memory Runtime that records the order of
// lifecycle events and lets tests script health transitions.
type fakeRuntime struct {
	mu sync.Mutex

	containers map[string]*fakeContainer // id -> container
	networks   map[string]bool
	volumes    map[string]bool
	events     []string
	nextID     int

	// healthAfter maps a service name to the number of inspections
	// before it reports healthy. Negative means it exits instead.
	healthAfter map[string]int
	inspections map[string]int
}

type fakeContainer struct {
	id      string
	spec    ContainerSpec
	running bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		containers:  map[string]*fakeContainer{},
		networks:    map[string]bool{},
		volumes:     map[string]bool{},
		healthAfter: map[string]int{},
		inspections: map[string]int{},
	}
}

func (f *fakeRuntime) record(ev string) { f.events = append(f.events, ev) }

func (f *fakeRuntime) EnsureNetwork(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks[name] = true
	return nil
}

func (f *fakeRuntime) RemoveNetwork(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.networks, name)
	return nil
}

func (f *fakeRuntime) EnsureVolume(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes[name] = true
	return nil
}

func (f *fakeRuntime) RemoveVolume(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.volumes, name)
	f.record("rmvol " + name)
	return nil
}

func (f *fakeRuntime) CreateContainer(_ context.Context, spec ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("c%d", f.nextID)
	f.containers[id] = &fakeContainer{id: id, spec: spec}
	f.record("create " + spec.Service)
	return id, nil
}

func (f *fakeRuntime) StartContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.containers[id]
	c.running = true
	f.record("start " + c.spec.Service)
	return nil
}

func (f *fakeRuntime) StopContainer(_ context.Context, id string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[id]; ok {
		c.running = false
		f.record("stop " + c.spec.Service)
	}
	return nil
}

func (f *fakeRuntime) RemoveContainer(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[id]; ok {
		delete(f.containers, id)
		f.record("remove " + c.spec.Service)
	}
	return nil
}

func (f *fakeRuntime) InspectService(_ context.Context, id string) (ServiceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return ServiceState{}, fmt.Errorf("no such container %s", id)
	}
	svc := c.spec.Service
	f.inspections[svc]++

	after, scripted := f.healthAfter[svc]
	if !scripted {
		return ServiceState{Running: c.running, Status: "running", Health: "none"}, nil
	}
	if after < 0 {
		return ServiceState{Running: false, ExitCode: 1, Status: "exited", Health: "unhealthy"}, nil
	}
	if f.inspections[svc] > after {
		return ServiceState{Running: true, Status: "running", Health: "healthy"}, nil
	}
	return ServiceState{Running: true, Status: "running", Health: "starting"}, nil
}

func (f *fakeRuntime) ListContainers(_ context.Context, project string) ([]ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ContainerInfo
	for _, c := range f.containers {
		if c.spec.Project != project {
			continue
		}
		state := "exited"
		if c.running {
			state = "running"
		}
		out = append(out, ContainerInfo{
			ID:         c.id,
			Name:       c.spec.Name,
			Service:    c.spec.Service,
			Image:      c.spec.Image,
			State:      state,
			ConfigHash: c.spec.ConfigHash,
		})
	}
	return out, nil
}

func (f *fakeRuntime) PullImage(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pull " + ref)
	return nil
}

func (f *fakeRuntime) Close() error { return nil }

func (f *fakeRuntime) eventIndex(ev string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, e := range f.events {
		if e == ev {
			return i
		}
	}
	return -1
}

func (f *fakeRuntime) serviceCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e == prefix {
			n++
		}
	}
	return n
}

func stackManifest(t *testing.T) *compose.Manifest {
	t.Helper()
	m, err := compose.Parse([]byte(`
services:
  mariadb:
    image: mariadb:11
    volumes:
      - cookbook-db:/var/lib/mysql
    healthcheck:
      test: ["CMD", "healthcheck.sh", "--connect"]
      interval: 1s
      timeout: 1s
      retries: 3
  backend:
    image: matzeds/cookbook-backend
    environment:
      DB_HOST: mariadb:3306
    depends_on:
      mariadb:
        condition: service_healthy
  frontend:
    image: matzeds/cookbook-frontend
    depends_on:
      - backend
volumes:
  cookbook-db:
`))
	require.NoError(t, err)
	return m
}

func testEngine(rt Runtime, m *compose.Manifest) *Engine {
	e := NewEngine(rt, "cookbook", m)
	e.poll = 5 * time.Millisecond
	return e
}

func TestUpHonorsHealthGate(t *testing.T) {
	rt := newFakeRuntime()
	rt.healthAfter["mariadb"] = 2 // healthy on the third probe

	eng := testEngine(rt, stackManifest(t))
	require.NoError(t, eng.Up(context.Background()))

	// backend must not start before mariadb's first successful probe,
	// frontend must not start before backend.
	dbStart := rt.eventIndex("start mariadb")
	beStart := rt.eventIndex("start backend")
	feStart := rt.eventIndex("start frontend")
	require.NotEqual(t, -1, dbStart)
	require.NotEqual(t, -1, beStart)
	require.NotEqual(t, -1, feStart)
	assert.Less(t, dbStart, beStart)
	assert.Less(t, beStart, feStart)
	assert.GreaterOrEqual(t, rt.inspections["mariadb"], 3)

	assert.True(t, rt.networks["cookbook_default"])
	assert.True(t, rt.volumes["cookbook_cookbook-db"])
}

func TestUpFailsWhenDependencyStaysUnhealthy(t *testing.T) {
	rt := newFakeRuntime()
	rt.healthAfter["mariadb"] = -1 // exits instead of passing

	eng := testEngine(rt, stackManifest(t))
	err := eng.Up(context.Background())
	require.ErrorIs(t, err, ErrUnhealthy)

	// Nothing behind the failed gate may have started.
	assert.Equal(t, -1, rt.eventIndex("start backend"))
	assert.Equal(t, -1, rt.eventIndex("start frontend"))
}

func TestUpReusesMatchingContainers(t *testing.T) {
	rt := newFakeRuntime()
	rt.healthAfter["mariadb"] = 0 // healthy on first probe
	eng := testEngine(rt, stackManifest(t))
	require.NoError(t, eng.Up(context.Background()))

	creates := rt.serviceCount("create backend")
	require.NoError(t, eng.Up(context.Background()))
	// Identical config, still running: no new container.
	assert.Equal(t, creates, rt.serviceCount("create backend"))
}

func TestUpRecreatesOnConfigChange(t *testing.T) {
	rt := newFakeRuntime()
	rt.healthAfter["mariadb"] = 0 // healthy on first probe
	m := stackManifest(t)
	eng := testEngine(rt, m)
	require.NoError(t, eng.Up(context.Background()))

	m.Services["backend"].Environment["DB_HOST"] = "other:3306"
	require.NoError(t, eng.Up(context.Background()))

	assert.Equal(t, 2, rt.serviceCount("create backend"))
	assert.NotEqual(t, -1, rt.eventIndex("remove backend"))
	// Untouched services keep their container.
	assert.Equal(t, 1, rt.serviceCount("create frontend"))
}

func TestDownKeepsVolumesByDefault(t *testing.T) {
	rt := newFakeRuntime()
	rt.healthAfter["mariadb"] = 0 // healthy on first probe
	eng := testEngine(rt, stackManifest(t))
	require.NoError(t, eng.Up(context.Background()))

	require.NoError(t, eng.Down(context.Background(), false))

	assert.Empty(t, rt.containers)
	assert.True(t, rt.volumes["cookbook_cookbook-db"], "plain down must not destroy data")

	// Reverse dependency order: frontend first, database last.
	assert.Less(t, rt.eventIndex("remove frontend"), rt.eventIndex("remove backend"))
	assert.Less(t, rt.eventIndex("remove backend"), rt.eventIndex("remove mariadb"))
}

func TestDownWithVolumesDestroysData(t *testing.T) {
	rt := newFakeRuntime()
	rt.healthAfter["mariadb"] = 0 // healthy on first probe
	eng := testEngine(rt, stackManifest(t))
	require.NoError(t, eng.Up(context.Background()))

	require.NoError(t, eng.Down(context.Background(), true))
	assert.False(t, rt.volumes["cookbook_cookbook-db"])
}

func TestSpecForPropagatesEnvironmentVerbatim(t *testing.T) {
	rt := newFakeRuntime()
	rt.healthAfter["mariadb"] = 0 // healthy on first probe
	eng := testEngine(rt, stackManifest(t))
	require.NoError(t, eng.Up(context.Background()))

	var backend *fakeContainer
	for _, c := range rt.containers {
		if c.spec.Service == "backend" {
			backend = c
		}
	}
	require.NotNil(t, backend)
	assert.Contains(t, backend.spec.Env, "DB_HOST=mariadb:3306")
	assert.Equal(t, "cookbook-backend-1", backend.spec.Name)
	assert.Equal(t, "cookbook_default", backend.spec.Network)
}

func TestPullSkipsBuildableServices(t *testing.T) {
	rt := newFakeRuntime()
	m, err := compose.Parse([]byte(`
services:
  mariadb:
    image: mariadb:11
  backend:
    image: matzeds/cookbook-backend
    build:
      context: ..
`))
	require.NoError(t, err)

	eng := testEngine(rt, m)
	require.NoError(t, eng.Pull(context.Background()))

	assert.NotEqual(t, -1, rt.eventIndex("pull mariadb:11"))
	assert.Equal(t, -1, rt.eventIndex("pull matzeds/cookbook-backend"))
}
