package containerbuild

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jucacrispim/toxicslave/internal/build"
	"github.com/jucacrispim/toxicslave/internal/manager"
	"github.com/jucacrispim/toxicslave/internal/plugin"
	"github.com/jucacrispim/toxicslave/internal/shellexec"
	"gopkg.in/yaml.v3"
)

func baseConfig(mgr manager.Manager) Config {
	return Config{
		Mgr:      mgr,
		Name:     "b1",
		Workdir:  "source",
		Steps:    []build.StepConfig{{Name: "ls", Command: "ls"}},
		Platform: "linux-generic",
		Images:   map[string]string{"linux-generic": "my-image"},
		User:     "bla",
		RepoID:   "repo",
	}
}

func stubRunner(ctx context.Context, cmd, cwd string, timeout time.Duration, env map[string]string, outFn shellexec.OutFunc) (string, error) {
	return "", nil
}

func TestNewBuilderRebasesContainerAwarePluginDataDir(t *testing.T) {
	node := decodePluginNode(t, `pyversion: python3.11`)
	p, err := plugin.NewRegistry().Build("./plugins-data", "python-venv", node)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := baseConfig(manager.NewInMemory())
	cfg.Plugins = []build.SlavePlugin{p}
	b, err := NewBuilder(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "/home/bla/plugins-data/python-venv/venv-python3.11"
	found := false
	for _, s := range b.inner.Steps {
		cmd, err := s.GetCommand(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(cmd, want) {
			found = true
		}
		if strings.Contains(cmd, " plugins-data/") {
			t.Errorf("step command %q still references the host data dir", cmd)
		}
	}
	if !found {
		t.Errorf("expected a step referencing the container-local venv dir %q", want)
	}
}

func decodePluginNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatal(err)
	}
	if len(node.Content) == 0 {
		t.Fatal("expected a document node")
	}
	return node.Content[0]
}

func TestNewBuilderUnknownPlatform(t *testing.T) {
	cfg := baseConfig(manager.NewInMemory())
	cfg.Platform = "no-such-platform"
	if _, err := NewBuilder(cfg); err == nil {
		t.Fatal("expected an error for an unconfigured platform")
	}
}

func TestNewBuilderWrapsStepsInContainerSteps(t *testing.T) {
	b, err := NewBuilder(baseConfig(manager.NewInMemory()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range b.inner.Steps {
		if _, ok := s.(*ContainerStep); !ok {
			t.Errorf("step %T is not a ContainerStep", s)
		}
	}
}

func TestBuilderLifecycleRemoveEnvTrue(t *testing.T) {
	cfg := baseConfig(manager.NewInMemory())
	cfg.RemoveEnv = true
	b, err := NewBuilder(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var calls []string
	b.container.Exec = func(ctx context.Context, cmd string) (string, error) {
		calls = append(calls, cmd)
		return "2", nil // makes every existence/liveness probe read as true
	}
	for _, s := range b.inner.Steps {
		s.(*ContainerStep).runner = stubRunner
	}

	if _, err := b.Build(context.Background(), "build-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	joined := strings.Join(calls, "\n")
	if !strings.Contains(joined, "docker start "+b.ContainerName()) {
		t.Errorf("expected a docker start command among %v", calls)
	}
	if !strings.Contains(joined, "docker kill "+b.ContainerName()) {
		t.Errorf("expected docker kill among %v", calls)
	}
	if !strings.Contains(joined, "docker rm -v "+b.ContainerName()) {
		t.Errorf("expected docker rm -v since RemoveEnv is true, among %v", calls)
	}
}

func TestBuilderLifecycleRemoveEnvFalseKeepsContainer(t *testing.T) {
	cfg := baseConfig(manager.NewInMemory())
	cfg.RemoveEnv = false
	b, err := NewBuilder(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var calls []string
	b.container.Exec = func(ctx context.Context, cmd string) (string, error) {
		calls = append(calls, cmd)
		return "2", nil
	}
	for _, s := range b.inner.Steps {
		s.(*ContainerStep).runner = stubRunner
	}

	if _, err := b.Build(context.Background(), "build-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	joined := strings.Join(calls, "\n")
	if strings.Contains(joined, "docker rm -v "+b.ContainerName()) {
		t.Errorf("did not expect docker rm -v when RemoveEnv is false, among %v", calls)
	}
	if !strings.Contains(joined, "rm -rf "+b.container.SrcDir) {
		t.Errorf("expected the in-container src dir to be removed, among %v", calls)
	}
}
