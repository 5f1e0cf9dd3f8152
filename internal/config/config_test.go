package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := DefaultConfig()
	if cfg.BackendCommand != want.BackendCommand || cfg.MaxPromptHistory != want.MaxPromptHistory {
		t.Fatalf("cfg=%+v want defaults", cfg)
	}
	if !cfg.SafeMode {
		t.Fatal("safe mode should default on")
	}
}

func TestLoadConfigClamping(t *testing.T) {
	tests := []struct {
		name string
		body string
		want func(t *testing.T, cfg Config)
	}{
		{
			name: "empty backend command falls back",
			body: "backend_command: \"\"\n",
			want: func(t *testing.T, cfg Config) {
				if cfg.BackendCommand != "chatdeck-backend" {
					t.Fatalf("backend=%q", cfg.BackendCommand)
				}
			},
		},
		{
			name: "history clamped low",
			body: "max_prompt_history: -5\n",
			want: func(t *testing.T, cfg Config) {
				if cfg.MaxPromptHistory != 100 {
					t.Fatalf("history=%d", cfg.MaxPromptHistory)
				}
			},
		},
		{
			name: "history clamped high",
			body: "max_prompt_history: 99999\n",
			want: func(t *testing.T, cfg Config) {
				if cfg.MaxPromptHistory != 1000 {
					t.Fatalf("history=%d", cfg.MaxPromptHistory)
				}
			},
		},
		{
			name: "backend args parsed",
			body: "backend_command: claude\nbackend_args: [\"--stream\", \"--json\"]\n",
			want: func(t *testing.T, cfg Config) {
				if cfg.BackendCommand != "claude" || len(cfg.BackendArgs) != 2 {
					t.Fatalf("cfg=%+v", cfg)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			tt.want(t, cfg)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	cfg := DefaultConfig()
	cfg.BackendCommand = "my-backend"
	cfg.Workspace = "/work/project"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.BackendCommand != "my-backend" || loaded.Workspace != "/work/project" {
		t.Fatalf("loaded=%+v", loaded)
	}
}
