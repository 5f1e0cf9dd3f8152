package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk YAML configuration.
type Config struct {
	// BackendCommand is the backend CLI binary spawned per session.
	BackendCommand string   `yaml:"backend_command"`
	BackendArgs    []string `yaml:"backend_args"`

	// Workspace is the default workspace path for new sessions. Empty means
	// the current directory.
	Workspace string `yaml:"workspace"`

	// MaxPromptHistory bounds the per-workspace prompt recall list.
	MaxPromptHistory int `yaml:"max_prompt_history"`

	// DataRoot overrides the session storage directory.
	DataRoot string `yaml:"data_root"`

	// SafeMode refuses allow_always on dangerous-risk permission requests.
	SafeMode bool `yaml:"safe_mode"`
}

func DefaultConfig() Config {
	return Config{
		BackendCommand:   "chatdeck-backend",
		MaxPromptHistory: 100,
		SafeMode:         true,
	}
}

// LoadConfig reads the config at path, falling back to defaults when the
// file is missing. Out-of-range values are clamped rather than rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if strings.TrimSpace(cfg.BackendCommand) == "" {
		cfg.BackendCommand = "chatdeck-backend"
	}
	if cfg.MaxPromptHistory <= 0 {
		cfg.MaxPromptHistory = 100
	}
	if cfg.MaxPromptHistory > 1000 {
		cfg.MaxPromptHistory = 1000
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return errors.New("no path for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "chatdeck", "config.yml")
}
