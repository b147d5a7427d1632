// Package plugin implements slave plugins, as specified in spec.md
// §4.5: named contributors of extra steps and environment variables,
// grounded on toxicslave/plugins.py.
package plugin

import (
	"fmt"
	"path/filepath"

	"github.com/jucacrispim/toxicslave/internal/build"
	"gopkg.in/yaml.v3"
)

// Plugin contributes steps to run before and after the user's own
// steps, plus environment variables merged into every step of the
// build (spec.md §4.5).
type Plugin interface {
	Name() string
	StepsBefore() []build.Step
	StepsAfter() []build.Step
	EnvVars() map[string]string
}

// Factory builds a Plugin from its YAML configuration node plus the
// shared plugin data directory.
type Factory func(dataDir string, node *yaml.Node) (Plugin, error)

// BadPluginConfig is returned for an unknown plugin name or a
// malformed configuration node.
type BadPluginConfig struct {
	Name string
	Err  error
}

func (e *BadPluginConfig) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad config for plugin %q: %s", e.Name, e.Err)
	}
	return fmt.Sprintf("unknown plugin %q", e.Name)
}

func (e *BadPluginConfig) Unwrap() error { return e.Err }

// Registry maps a plugin name to its Factory. NewRegistry registers the
// built-ins so callers never have to wire them by hand.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a Registry pre-loaded with the built-in plugins
// (python-venv, apt-install).
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("python-venv", newPythonVenvPlugin)
	r.Register("apt-install", newAptInstallPlugin)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build resolves name against the registry and constructs the plugin
// from its configuration node.
func (r *Registry) Build(dataDir, name string, node *yaml.Node) (Plugin, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &BadPluginConfig{Name: name}
	}
	p, err := f(dataDir, node)
	if err != nil {
		return nil, &BadPluginConfig{Name: name, Err: err}
	}
	return p, nil
}

// pluginDataDir mirrors SlavePlugin.data_dir: <dataDir>/<name>.
func pluginDataDir(dataDir, name string) string {
	return filepath.Join(dataDir, name)
}
