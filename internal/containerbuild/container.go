// Package containerbuild implements the container-sandboxed build
// variant from spec.md §4.4: a container is acquired, the workspace is
// copied into it, every step runs via `docker exec`, and the container
// is torn down on exit. Everything is shelled out through
// internal/shellexec rather than the Docker Engine SDK, so the literal
// command strings this package issues match the ones a caller can
// assert on directly.
package containerbuild

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jucacrispim/toxicslave/internal/shellexec"
)

// Container owns the lifecycle of one docker container used to run a
// single build's steps, grounded on toxicslave/docker.py's
// DockerContainerBuilder (reconstructed from test_docker.py, since the
// module itself wasn't in the retrieved source).
type Container struct {
	Name  string
	Image string
	User  string

	// Workdir is the source tree to copy in, and SrcDir is where it
	// lands inside the container (/home/<user>/src).
	Workdir string
	SrcDir  string

	// PluginDataDir is the in-container root plugins rebase their
	// persistent data under (/home/<user>/plugins-data).
	PluginDataDir string

	IsDind     bool
	DindVolume bool
	VolumeName string

	// Exec runs one shell command and returns its output, defaulting to
	// shellexec.Run. Tests override it to assert on the exact command
	// strings this type builds without needing a real docker daemon.
	Exec func(ctx context.Context, cmd string) (string, error)
}

// srcDirFor returns the canonical in-container source path for user.
func srcDirFor(user string) string {
	return fmt.Sprintf("/home/%s/src", user)
}

// pluginDataDirFor returns the canonical in-container root for plugin
// persistent data, used to rebase host-rooted plugin data dirs (e.g.
// python-venv's venv_dir) when a build runs in a container (spec.md
// §4.5), grounded on test_docker.py's docker_plugin_data_dir.
func pluginDataDirFor(user string) string {
	return fmt.Sprintf("/home/%s/plugins-data", user)
}

// NewContainer fills in SrcDir from User.
func NewContainer(name, image, user, workdir string, isDind, dindVolume bool, volumeName string) *Container {
	return &Container{
		Name:          name,
		Image:         image,
		User:          user,
		Workdir:       workdir,
		SrcDir:        srcDirFor(user),
		PluginDataDir: pluginDataDirFor(user),
		IsDind:        isDind,
		DindVolume:    dindVolume,
		VolumeName:    volumeName,
		Exec: func(ctx context.Context, cmd string) (string, error) {
			return shellexec.Run(ctx, cmd, ".", 0, nil, nil)
		},
	}
}

func (c *Container) run(ctx context.Context, cmd string) (string, error) {
	return c.Exec(ctx, cmd)
}

// dindOpts renders the extra `docker run` flags for docker-in-docker
// builders (spec.md §4.4).
func (c *Container) dindOpts() string {
	if !c.IsDind {
		return " "
	}
	opts := "--privileged "
	if c.DindVolume {
		opts += fmt.Sprintf("--mount source=%s,destination=/var/lib/docker/", c.VolumeName)
	}
	return opts
}

// Exists reports whether a container named Name exists at all
// (running or stopped). It counts the lines of the filtered
// `docker ps -a` output and returns true only when that count is
// greater than 1; a count of 1 reads as false.
func (c *Container) Exists(ctx context.Context) bool {
	cmd := fmt.Sprintf("docker ps -a --filter name=%s --format '{{.Names}}' | wc -l", c.Name)
	out, err := c.run(ctx, cmd)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return false
	}
	return n > 1
}

// IsRunning reports whether the container is currently running, with
// the same line-count rule as Exists (true only for a count above 1).
func (c *Container) IsRunning(ctx context.Context) bool {
	cmd := fmt.Sprintf("docker ps --filter name=%s --format '{{.Names}}' | wc -l", c.Name)
	out, err := c.run(ctx, cmd)
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return false
	}
	return n > 1
}

// ServiceIsUp probes the container with a trivial command, for images
// that need post-start init before they're ready.
func (c *Container) ServiceIsUp(ctx context.Context) bool {
	_, err := c.run(ctx, fmt.Sprintf("docker exec %s true", c.Name))
	return err == nil
}

// WaitStart polls IsRunning until it's true.
func (c *Container) WaitStart(ctx context.Context) error {
	return retry.Do(
		func() error {
			if c.IsRunning(ctx) {
				return nil
			}
			return fmt.Errorf("container %s not running yet", c.Name)
		},
		retry.Context(ctx),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.Attempts(0),
	)
}

// WaitService polls ServiceIsUp until it succeeds.
func (c *Container) WaitService(ctx context.Context) error {
	return retry.Do(
		func() error {
			if c.ServiceIsUp(ctx) {
				return nil
			}
			return fmt.Errorf("service in container %s not up yet", c.Name)
		},
		retry.Context(ctx),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.Attempts(0),
	)
}

// Start creates or resumes the container, then waits for it to be
// running.
func (c *Container) Start(ctx context.Context) error {
	var cmd string
	if c.Exists(ctx) {
		cmd = fmt.Sprintf("docker start %s", c.Name)
	} else {
		cmd = fmt.Sprintf("docker run -d -t %s --name %s %s", c.dindOpts(), c.Name, c.Image)
	}
	if _, err := c.run(ctx, cmd); err != nil {
		return fmt.Errorf("starting container: %w", err)
	}
	return c.WaitStart(ctx)
}

// CopyIn copies Workdir into the container and chowns it to User.
func (c *Container) CopyIn(ctx context.Context) error {
	cp := fmt.Sprintf("docker cp %s %s:%s", c.Workdir, c.Name, c.SrcDir)
	if _, err := c.run(ctx, cp); err != nil {
		return fmt.Errorf("copying workdir into container: %w", err)
	}
	chown := fmt.Sprintf("docker exec -u root -t %s chown -R %s:%s %s", c.Name, c.User, c.User, c.SrcDir)
	if _, err := c.run(ctx, chown); err != nil {
		return fmt.Errorf("chowning workdir in container: %w", err)
	}
	return nil
}

// Kill always runs on exit.
func (c *Container) Kill(ctx context.Context) error {
	_, err := c.run(ctx, fmt.Sprintf("docker kill %s", c.Name))
	return err
}

// Rm removes the container and its volumes, run when remove_env=true.
func (c *Container) Rm(ctx context.Context) error {
	_, err := c.run(ctx, fmt.Sprintf("docker rm -v %s", c.Name))
	return err
}

// RmSrc removes the source dir inside the container without removing
// the container itself, run when remove_env=false so it's clean for
// reuse.
func (c *Container) RmSrc(ctx context.Context) error {
	_, err := c.run(ctx, fmt.Sprintf("docker exec -u root %s rm -rf %s", c.Name, c.SrcDir))
	return err
}

// Env reads the container's baseline environment via `docker exec env`,
// stripping the trailing \r every line carries.
func (c *Container) Env(ctx context.Context) (map[string]string, error) {
	out, err := c.run(ctx, fmt.Sprintf("docker exec %s env", c.Name))
	if err != nil {
		return nil, err
	}

	env := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env, nil
}
