package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoader_Load(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, ".config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 8080
  websocket_path: "/ws/voice"
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
assistant:
  language: "es-MX"
  speech_rate: 1.1
  speech_volume: 0.8
  speech_pitch: 1.0
  recognition_timeout: 8s
  processing_timeout: 12s
  follow_up_delay: 500ms
  max_spoken_errors: 2
  routes:
    - name: polizas
      keywords: ["mis polizas"]
      url: /cliente/polizas
      confirmation: Abriendo tus pólizas
classifier:
  api_base_url: "https://api.vesta.test/api"
  timeout: 5s
store:
  driver: memory
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := NewLoader().WithDotEnv(false).WithPath(configFile).Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected log level DEBUG, got %s", cfg.Log.Level)
	}
	if cfg.Assistant.Language != "es-MX" {
		t.Errorf("expected language es-MX, got %s", cfg.Assistant.Language)
	}
	if cfg.Assistant.RecognitionTimeout != 8*time.Second {
		t.Errorf("expected recognition timeout 8s, got %s", cfg.Assistant.RecognitionTimeout)
	}
	if cfg.Assistant.FollowUpDelay != 500*time.Millisecond {
		t.Errorf("expected follow-up delay 500ms, got %s", cfg.Assistant.FollowUpDelay)
	}
	if cfg.Assistant.ErrorDisplayDelay != 3*time.Second {
		t.Errorf("unset fields should keep defaults, got %s", cfg.Assistant.ErrorDisplayDelay)
	}
	if len(cfg.Assistant.Routes) != 1 || cfg.Assistant.Routes[0].URL != "/cliente/polizas" {
		t.Errorf("unexpected routes: %+v", cfg.Assistant.Routes)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory store, got %s", cfg.Store.Driver)
	}
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Assistant.Language != "es-ES" || cfg.Assistant.ProcessingTimeout != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg.Assistant)
	}
	if got := cfg.Auth.TokenSources; len(got) != 4 || got[0] != "session" || got[3] != "global" {
		t.Fatalf("unexpected token sources: %v", got)
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("VESTA_SERVER_PORT", "9100")
	t.Setenv("VESTA_API_TOKEN", "ambient-token")
	t.Setenv("VESTA_STORE_DRIVER", "memory")

	cfg, err := NewLoader().WithDotEnv(false).WithPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("expected port 9100, got %d", cfg.Server.Port)
	}
	if cfg.Auth.GlobalToken != "ambient-token" {
		t.Errorf("expected ambient token, got %q", cfg.Auth.GlobalToken)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("expected memory driver, got %s", cfg.Store.Driver)
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "invalid server port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid api base url",
			mutate:  func(c *Config) { c.Classifier.APIBaseURL = "not a url" },
			wantErr: true,
		},
		{
			name:    "unknown token source",
			mutate:  func(c *Config) { c.Auth.TokenSources = []string{"session", "cookie"} },
			wantErr: true,
		},
		{
			name:    "redis driver without address",
			mutate:  func(c *Config) { c.Store.Driver = "redis" },
			wantErr: true,
		},
		{
			name:    "zero processing timeout",
			mutate:  func(c *Config) { c.Assistant.ProcessingTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "unknown synthesis mode",
			mutate:  func(c *Config) { c.Synthesis.Mode = "cloud" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := loader.validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
