package containerbuild

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jucacrispim/toxicslave/internal/build"
	"github.com/jucacrispim/toxicslave/internal/shellexec"
)

// ContainerStep rewrites a build.Step's command into a `docker exec`
// invocation against a running container, per spec.md §4.4's "Step
// wrapping" section. GetCommand/Name/Timeout/WarningOnFail/StopOnFail
// all delegate to the wrapped step, preserving its identity (e.g. for
// step_info.cmd) while RunCommand is where the actual container routing
// happens.
type ContainerStep struct {
	inner     build.Step
	container *Container

	// runner executes the wrapped docker-exec command, defaulting to
	// shellexec.Run. Tests override it to capture the exact command
	// string without a real docker daemon.
	runner func(ctx context.Context, cmd, cwd string, timeout time.Duration, env map[string]string, outFn shellexec.OutFunc) (string, error)
}

// NewContainerStep wraps inner so it runs inside container.
func NewContainerStep(inner build.Step, container *Container) *ContainerStep {
	return &ContainerStep{inner: inner, container: container, runner: shellexec.Run}
}

func (s *ContainerStep) Name() string                             { return s.inner.Name() }
func (s *ContainerStep) Timeout() time.Duration                    { return s.inner.Timeout() }
func (s *ContainerStep) WarningOnFail() bool                       { return s.inner.WarningOnFail() }
func (s *ContainerStep) StopOnFail() bool                          { return s.inner.StopOnFail() }
func (s *ContainerStep) GetCommand(ctx context.Context) (string, error) { return s.inner.GetCommand(ctx) }

// RunCommand wraps cmd into the docker-exec invocation described in
// spec.md §4.4 and runs it through the same shellexec path a bare
// BuildStep would use.
func (s *ContainerStep) RunCommand(ctx context.Context, cmd, cwd string, env map[string]string, outFn shellexec.OutFunc) (string, error) {
	envPrefix, err := s.cmdLineEnvVars(ctx, env)
	if err != nil {
		return "", err
	}

	wrapped := fmt.Sprintf("docker exec -u %s %s /bin/bash -c '%s cd %s && %s'",
		s.container.User, s.container.Name, envPrefix, s.container.SrcDir, cmd)

	return s.runner(ctx, wrapped, cwd, s.inner.Timeout(), nil, outFn)
}

// cmdLineEnvVars renders env as `export K=V ` pairs, expanding a
// literal ":PATH" suffix in a value against the container's own
// current value of that key (spec.md §4.4, supporting the python-venv
// plugin's `PATH=<venv>/bin:PATH` idiom).
func (s *ContainerStep) cmdLineEnvVars(ctx context.Context, env map[string]string) (string, error) {
	if len(env) == 0 {
		return "", nil
	}

	dockerEnv, err := s.container.Env(ctx)
	if err != nil {
		return "", fmt.Errorf("reading container environment: %w", err)
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		v := env[k]
		if current, ok := dockerEnv[k]; ok && strings.Contains(v, ":PATH") {
			v = strings.ReplaceAll(v, ":PATH", ":"+current)
		}
		fmt.Fprintf(&sb, "export %s=%s ", k, v)
	}
	return sb.String(), nil
}
