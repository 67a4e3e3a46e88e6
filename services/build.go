package services

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/matzeds/cookbook/common"
	"github.com/matzeds/cookbook/compose"
)

// ImageBuild is one image build invocation: fixed tag, fixed context, no
// retries. Build failures propagate verbatim.
type ImageBuild struct {
	Service    string
	Tag        string
	Context    string
	Dockerfile string
}

// CommandRunner executes one external command and returns its combined
// output. The default shells out; tests substitute their own.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Builder runs image builds for the manifest's buildable services.
type Builder struct {
	run CommandRunner
}

// NewBuilder returns a Builder that shells out to docker buildx.
func NewBuilder() *Builder { return &Builder{run: execRunner} }

// NewBuilderWithRunner is for tests.
func NewBuilderWithRunner(run CommandRunner) *Builder { return &Builder{run: run} }

// BuildsFor collects the build definitions from the manifest, resolved
// against the manifest's directory. The image tag is the service's
// declared image name.
func BuildsFor(m *compose.Manifest, manifestDir string, services ...string) ([]ImageBuild, error) {
	want := map[string]bool{}
	for _, s := range services {
		want[s] = true
	}

	var out []ImageBuild
	for name, svc := range m.Services {
		if svc.Build == nil {
			continue
		}
		if len(want) > 0 && !want[name] {
			continue
		}
		tag := svc.Image
		if tag == "" {
			return nil, fmt.Errorf("service %q has a build but no image tag", name)
		}
		b := ImageBuild{
			Service: name,
			Tag:     tag,
			Context: filepath.Join(manifestDir, svc.Build.Context),
		}
		if svc.Build.Dockerfile != "" {
			b.Dockerfile = filepath.Join(manifestDir, svc.Build.Context, svc.Build.Dockerfile)
		}
		out = append(out, b)
	}

	for _, s := range services {
		found := false
		for _, b := range out {
			if b.Service == s {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("service %q has no build section", s)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

// Build runs exactly one `docker buildx build` per image.
func (b *Builder) Build(ctx context.Context, builds ...ImageBuild) error {
	for _, ib := range builds {
		args := []string{"buildx", "build", "-t", ib.Tag}
		if ib.Dockerfile != "" {
			args = append(args, "-f", ib.Dockerfile)
		}
		args = append(args, ib.Context)

		common.InfoLog("build: %s -> %s", ib.Service, ib.Tag)
		out, err := b.run(ctx, "docker", args...)
		common.LogCommandOutput("build "+ib.Service, out)
		if err != nil {
			return fmt.Errorf("build %s failed: %w\n%s", ib.Tag, err, string(out))
		}
	}
	return nil
}
