// Package config loads toxicslave's settings, enumerated in spec.md §6.
package config

import (
	"context"
	"fmt"
	"os"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Server holds the bootstrap/listener knobs. The listener itself is out
// of scope for the core (spec.md §1) but the settings surface is not.
type Server struct {
	Addr    string `env:"ADDR, default=0.0.0.0"`
	Port    int    `env:"PORT, default=7777"`
	UseSSL  bool   `env:"USE_SSL, default=false"`
	CertFile string `env:"CERTFILE"`
	KeyFile  string `env:"KEYFILE"`
}

// Container holds the knobs the container sandboxing layer needs.
type Container struct {
	// User is the non-root user inside build images; its home is
	// /home/<User> and sources live at /home/<User>/src.
	User string `env:"CONTAINER_USER, default=toxicuser"`

	// ImagesFile optionally points at a YAML file mapping platform to
	// docker image, loaded into Images at startup. DOCKER_IMAGES itself
	// cannot be expressed cleanly as a flat env var, so the YAML side
	// file is the escape hatch (mirrors how workflow.FromFile in the
	// teacher pack decodes step lists from YAML instead of env vars).
	ImagesFile string `env:"DOCKER_IMAGES_FILE"`
	Images     map[string]string
}

// Plugins holds knobs for the plugin registry.
type Plugins struct {
	DataDir string `env:"PLUGINS_DATA_DIR, default=./plugins-data"`
}

// Build holds knobs for the build execution engine.
type Build struct {
	// StepOutputBuffLen is the high-water mark, in bytes, before a
	// step's buffered output is flushed as a step_output_info message.
	// Zero means "flush every line" (spec.md §4.3, §9).
	StepOutputBuffLen int `env:"STEP_OUTPUT_BUFF_LEN, default=0"`
}

// Config is the full settings surface enumerated in spec.md §6.
type Config struct {
	Server    Server    `env:",prefix=TOXICSLAVE_SERVER_"`
	Container Container `env:",prefix=TOXICSLAVE_"`
	Plugins   Plugins   `env:",prefix=TOXICSLAVE_"`
	Build     Build     `env:",prefix=TOXICSLAVE_"`
}

// Load reads settings from the environment, then layers in
// Container.ImagesFile if set.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	if cfg.Container.ImagesFile != "" {
		images, err := loadImages(cfg.Container.ImagesFile)
		if err != nil {
			return nil, fmt.Errorf("loading docker images map: %w", err)
		}
		cfg.Container.Images = images
	}

	return &cfg, nil
}

func loadImages(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var images map[string]string
	if err := yaml.Unmarshal(data, &images); err != nil {
		return nil, err
	}
	return images, nil
}
