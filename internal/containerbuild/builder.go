package containerbuild

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jucacrispim/toxicslave/internal/build"
	"github.com/jucacrispim/toxicslave/internal/manager"
	"github.com/jucacrispim/toxicslave/internal/protocol"
)

// Builder is the ContainerBuilder variant from spec.md §4.4: a
// build.Builder whose scoped-workspace discipline is replaced by
// acquiring a container, copying the workspace into it, and routing
// every step through `docker exec`.
type Builder struct {
	inner     *build.Builder
	container *Container
}

// Config is everything needed to resolve image/user/cname before the
// container exists.
type Config struct {
	Mgr     manager.Manager
	Name    string
	Workdir string
	Steps   []build.StepConfig
	Plugins []build.SlavePlugin
	EnvVars map[string]string

	Platform string
	Images   map[string]string
	User     string

	// RepoID is folded into the container name and dind volume name so
	// they stay globally unique (spec.md §5).
	RepoID string

	RemoveEnv         bool
	StepOutputBuffLen int

	// DindVolume has no default of its own: the zero value false means
	// no volume is mounted for dind builders, so callers that want the
	// volume must set it explicitly.
	DindVolume bool
}

// NewBuilder resolves the image for Platform, derives a unique
// container name, wraps every materialized step into a ContainerStep,
// and wires the inner build.Builder's Enter/Exit to the container
// lifecycle.
func NewBuilder(cfg Config) (*Builder, error) {
	image, ok := cfg.Images[cfg.Platform]
	if !ok {
		return nil, fmt.Errorf("containerbuild: no image configured for platform %q", cfg.Platform)
	}

	cname := fmt.Sprintf("%s-%s-%s", cfg.RepoID, cfg.Name, shortUUID())
	isDind := isDindPlatform(cfg.Platform)
	volumeName := fmt.Sprintf("%s-%s-volume", cfg.RepoID, cfg.Name)

	container := NewContainer(cname, image, cfg.User, cfg.Workdir, isDind, cfg.DindVolume, volumeName)
	plugins := rebasePluginsForContainer(cfg.Plugins, container.PluginDataDir)

	inner := build.NewBuilder(cfg.Mgr, cfg.Name, cfg.Workdir, cfg.Steps, plugins, cfg.EnvVars, cfg.RemoveEnv, cfg.StepOutputBuffLen)
	for i, s := range inner.Steps {
		inner.Steps[i] = NewContainerStep(s, container)
	}

	b := &Builder{inner: inner, container: container}

	inner.Enter = func(ctx context.Context) (string, error) {
		if err := container.Start(ctx); err != nil {
			return "", err
		}
		if err := container.WaitService(ctx); err != nil {
			return "", err
		}
		if err := container.CopyIn(ctx); err != nil {
			return "", err
		}
		return container.SrcDir, nil
	}
	inner.Exit = func(ctx context.Context) error {
		killErr := container.Kill(ctx)
		var teardownErr error
		if inner.RemoveEnv {
			teardownErr = container.Rm(ctx)
		} else {
			teardownErr = container.RmSrc(ctx)
		}
		if killErr != nil {
			return killErr
		}
		return teardownErr
	}

	return b, nil
}

// rebasePluginsForContainer points every build.ContainerRebaser plugin's
// data dir at dataDir (the container-local plugins-data root), so e.g.
// python-venv's venv_dir resolves inside the container rather than on
// the host (spec.md §4.5).
func rebasePluginsForContainer(plugins []build.SlavePlugin, dataDir string) []build.SlavePlugin {
	rebased := make([]build.SlavePlugin, len(plugins))
	for i, p := range plugins {
		if r, ok := p.(build.ContainerRebaser); ok {
			rebased[i] = r.WithDataDir(dataDir)
		} else {
			rebased[i] = p
		}
	}
	return rebased
}

// isDindPlatform reports whether platform denotes a docker-in-docker
// builder, per spec.md §4.4: true iff platform starts with "docker".
func isDindPlatform(platform string) bool {
	return strings.HasPrefix(platform, "docker")
}

func shortUUID() string {
	return uuid.NewString()[:8]
}

// Build runs the build inside the acquired container.
func (b *Builder) Build(ctx context.Context, buildUUID string) (*protocol.BuildInfo, error) {
	return b.inner.Build(ctx, buildUUID)
}

// ContainerName returns the name the underlying container was given.
func (b *Builder) ContainerName() string {
	return b.container.Name
}
