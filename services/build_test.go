package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzeds/cookbook/compose"
)

func buildManifest(t *testing.T) *compose.Manifest {
	t.Helper()
	m, err := compose.Parse([]byte(`
services:
  mariadb:
    image: mariadb:11
  backend:
    image: matzeds/cookbook-backend
    build:
      context: ..
      dockerfile: deploy/backend.Dockerfile
  frontend:
    image: matzeds/cookbook-frontend
    build:
      context: ..
      dockerfile: deploy/frontend.Dockerfile
`))
	require.NoError(t, err)
	return m
}

func TestBuildsForCollectsBuildableServices(t *testing.T) {
	builds, err := BuildsFor(buildManifest(t), "deploy")
	require.NoError(t, err)

	require.Len(t, builds, 2)
	assert.Equal(t, "backend", builds[0].Service)
	assert.Equal(t, "matzeds/cookbook-backend", builds[0].Tag)
	assert.Equal(t, filepath.Join("deploy", ".."), builds[0].Context)
	assert.Equal(t, filepath.Join("deploy", "..", "deploy", "backend.Dockerfile"), builds[0].Dockerfile)
	assert.Equal(t, "frontend", builds[1].Service)
}

func TestBuildsForSubset(t *testing.T) {
	builds, err := BuildsFor(buildManifest(t), "deploy", "backend")
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "backend", builds[0].Service)
}

func TestBuildsForRejectsServiceWithoutBuild(t *testing.T) {
	_, err := BuildsFor(buildManifest(t), "deploy", "mariadb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no build section")
}

func TestBuildsForRequiresImageTag(t *testing.T) {
	m, err := compose.Parse([]byte(`
services:
  app:
    build:
      context: .
`))
	require.NoError(t, err)

	_, err = BuildsFor(m, ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image tag")
}

func TestBuildRunsOneCommandPerImage(t *testing.T) {
	var calls [][]string
	runner := func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, append([]string{name}, args...))
		return []byte("ok"), nil
	}

	builds, err := BuildsFor(buildManifest(t), "deploy")
	require.NoError(t, err)
	require.NoError(t, NewBuilderWithRunner(runner).Build(context.Background(), builds...))

	require.Len(t, calls, 2)
	assert.Equal(t, []string{
		"docker", "buildx", "build",
		"-t", "matzeds/cookbook-backend",
		"-f", filepath.Join("deploy", "..", "deploy", "backend.Dockerfile"),
		filepath.Join("deploy", ".."),
	}, calls[0])
}

func TestBuildPropagatesFailure(t *testing.T) {
	runner := func(_ context.Context, _ string, _ ...string) ([]byte, error) {
		return []byte("step 3/7 failed"), errors.New("exit status 1")
	}

	err := NewBuilderWithRunner(runner).Build(context.Background(), ImageBuild{
		Service: "backend", Tag: "matzeds/cookbook-backend", Context: ".",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matzeds/cookbook-backend")
	assert.Contains(t, err.Error(), "step 3/7 failed")
}
