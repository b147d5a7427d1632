package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jucacrispim/toxicslave/internal/build"
	"github.com/jucacrispim/toxicslave/internal/protocol"
	"github.com/jucacrispim/toxicslave/internal/shellexec"
	"gopkg.in/yaml.v3"
)

// pythonCreateVenvStep skips the venv creation command when the venv's
// python executable is already present in cwd, grounded on
// PythonCreateVenvStep in plugins.py.
type pythonCreateVenvStep struct {
	*build.BuildStep
	venvDir string
}

// ExecuteOverride implements the customOutcome hook in package build.
func (s *pythonCreateVenvStep) ExecuteOverride(ctx context.Context, cwd string, env map[string]string, outFn shellexec.OutFunc) (build.Outcome, bool) {
	pyExec := filepath.Join(s.venvDir, "bin", "python")
	if _, err := os.Stat(filepath.Join(cwd, pyExec)); err == nil {
		return build.Outcome{Status: protocol.StatusSuccess, Output: "venv exists. Skipping..."}, true
	}
	return build.Outcome{}, false
}

type pythonVenvConfig struct {
	Pyversion        string   `yaml:"pyversion"`
	RequirementsFile string   `yaml:"requirements_file"`
	RemoveEnv        bool     `yaml:"remove_env"`
	ExtraIndexes     []string `yaml:"extra_indexes"`
}

type pythonVenvPlugin struct {
	cfg     pythonVenvConfig
	dataDir string
	venvDir string
}

func newPythonVenvPlugin(dataDir string, node *yaml.Node) (Plugin, error) {
	cfg := pythonVenvConfig{RequirementsFile: "requirements.txt"}
	if node != nil {
		if err := node.Decode(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Pyversion == "" {
		return nil, fmt.Errorf("python-venv: pyversion is required")
	}

	pDataDir := pluginDataDir(dataDir, "python-venv")
	venvName := "venv-" + strings.ReplaceAll(cfg.Pyversion, string(os.PathSeparator), "")
	return &pythonVenvPlugin{
		cfg:     cfg,
		dataDir: pDataDir,
		venvDir: filepath.Join(pDataDir, venvName),
	}, nil
}

func (p *pythonVenvPlugin) Name() string { return "python-venv" }

// WithDataDir returns a copy of p rooted at a different data directory,
// implementing build.ContainerRebaser so a containerbuild.Builder can
// point venv_dir at a container-local path instead of the host one
// (spec.md §4.5).
func (p *pythonVenvPlugin) WithDataDir(dataDir string) build.SlavePlugin {
	pDataDir := pluginDataDir(dataDir, "python-venv")
	venvName := "venv-" + strings.ReplaceAll(p.cfg.Pyversion, string(os.PathSeparator), "")
	return &pythonVenvPlugin{
		cfg:     p.cfg,
		dataDir: pDataDir,
		venvDir: filepath.Join(pDataDir, venvName),
	}
}

func (p *pythonVenvPlugin) StepsBefore() []build.Step {
	createCmd := fmt.Sprintf("mkdir -p %s && %s -m venv %s", p.dataDir, p.cfg.Pyversion, p.venvDir)
	createVenv := &pythonCreateVenvStep{
		BuildStep: build.NewBuildStep("Create virtualenv", createCmd, 0, false, true),
		venvDir:   p.venvDir,
	}

	var extraIndexes strings.Builder
	for _, idx := range p.cfg.ExtraIndexes {
		fmt.Fprintf(&extraIndexes, "--extra-index-url=%s ", idx)
	}
	installCmd := fmt.Sprintf("pip install -r %s %s", p.cfg.RequirementsFile, extraIndexes.String())
	installDeps := build.NewBuildStep("install dependencies using pip", installCmd, 0, false, true)

	return []build.Step{createVenv, installDeps}
}

func (p *pythonVenvPlugin) StepsAfter() []build.Step {
	if !p.cfg.RemoveEnv {
		return nil
	}
	return []build.Step{
		build.NewBuildStep("remove venv", fmt.Sprintf("rm -rf %s", p.venvDir), 0, false, false),
	}
}

func (p *pythonVenvPlugin) EnvVars() map[string]string {
	return map[string]string{"PATH": fmt.Sprintf("%s/bin:PATH", p.venvDir)}
}
