package grove

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dangdungcntt/go-grove/compiler"
)

// Config mirrors a grove.yml engine configuration.
type Config struct {
	// Views is the template root directory.
	Views string `yaml:"views"`
	// Extensions overrides the file extensions Load picks up.
	Extensions []string `yaml:"extensions"`
	// CacheDir enables the compiled-source disk cache.
	CacheDir string `yaml:"cache_dir"`
	// Mode is "strict" or "permissive"; empty means strict.
	Mode string `yaml:"mode"`
	// Watch enables filesystem watching of the views directory.
	Watch bool `yaml:"watch"`
}

// LoadConfig reads and validates a yaml config file.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Views == "" {
		return nil, fmt.Errorf("config %s: views directory is required", path)
	}
	if _, err := compiler.ParseMode(cfg.Mode); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// NewEngineConfig builds an engine from a config. Watch is not started
// here; call Engine.Watch when cfg.Watch is set.
func NewEngineConfig(cfg *Config) (*Engine, error) {
	mode, err := compiler.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	e := NewEngine(cfg.Views)
	e.Mode = mode
	e.CacheDir = cfg.CacheDir
	if len(cfg.Extensions) > 0 {
		e.extensions = normalizeExtensions(cfg.Extensions)
	}
	return e, nil
}

// normalizeExtensions lowercases and dots extension names, so "HTML" and
// ".html" configure the same filter.
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
