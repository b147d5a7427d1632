package plugin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jucacrispim/toxicslave/internal/build"
	"github.com/jucacrispim/toxicslave/internal/shellexec"
	"gopkg.in/yaml.v3"
)

const aptDefaultTimeout = 600 * time.Second

// aptUpdateStep runs `apt-get update`, grounded on AptUpdateStep in
// plugins.py.
func aptUpdateStep(timeout time.Duration) *build.BuildStep {
	return build.NewBuildStep("Updating apt packages list", "sudo apt-get update", timeout, false, true)
}

// aptInstallStep decides at run time, via a dpkg -l count check,
// whether the packages still need installing or only reconfiguring,
// grounded on AptInstallStep.get_command in plugins.py. The decision is
// cached in resolved so it only runs once per step instance.
type aptInstallStep struct {
	*build.BuildStep
	packages   []string
	installCmd string
	reconfCmd  string
	resolved   string
}

func newAptInstallStep(packages []string, timeout time.Duration) *aptInstallStep {
	packagesStr := strings.Join(packages, " ")
	installCmd := "sudo apt-get install -y " + packagesStr
	reconfCmd := "sudo dpkg-reconfigure " + packagesStr
	return &aptInstallStep{
		BuildStep:  build.NewBuildStep("Installing packages with apt-get", installCmd, timeout, false, true),
		packages:   packages,
		installCmd: installCmd,
		reconfCmd:  reconfCmd,
	}
}

func (s *aptInstallStep) GetCommand(ctx context.Context) (string, error) {
	if s.resolved != "" {
		return s.resolved, nil
	}

	installed, err := s.isEverythingInstalled(ctx)
	if err != nil {
		return "", err
	}
	if installed {
		s.resolved = s.reconfCmd
	} else {
		s.resolved = s.installCmd
	}
	return s.resolved, nil
}

func (s *aptInstallStep) isEverythingInstalled(ctx context.Context) (bool, error) {
	cmd := fmt.Sprintf("sudo dpkg -l | egrep '%s' | wc -l", strings.Join(s.packages, "|"))
	out, err := shellexec.Run(ctx, cmd, ".", 0, nil, nil)
	if err != nil {
		return false, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return false, fmt.Errorf("apt-install: parsing dpkg count: %w", err)
	}
	return count == len(s.packages), nil
}

type aptInstallConfig struct {
	Packages []string `yaml:"packages"`
	Timeout  int      `yaml:"timeout"`
}

type aptInstallPlugin struct {
	cfg aptInstallConfig
}

func newAptInstallPlugin(dataDir string, node *yaml.Node) (Plugin, error) {
	cfg := aptInstallConfig{}
	if node != nil {
		if err := node.Decode(&cfg); err != nil {
			return nil, err
		}
	}
	return &aptInstallPlugin{cfg: cfg}, nil
}

func (p *aptInstallPlugin) Name() string { return "apt-install" }

func (p *aptInstallPlugin) timeout() time.Duration {
	if p.cfg.Timeout <= 0 {
		return aptDefaultTimeout
	}
	return time.Duration(p.cfg.Timeout) * time.Second
}

func (p *aptInstallPlugin) StepsBefore() []build.Step {
	return []build.Step{
		aptUpdateStep(p.timeout()),
		newAptInstallStep(p.cfg.Packages, p.timeout()),
	}
}

func (p *aptInstallPlugin) StepsAfter() []build.Step { return nil }

func (p *aptInstallPlugin) EnvVars() map[string]string {
	return map[string]string{"DEBIAN_FRONTEND": "noninteractive"}
}
