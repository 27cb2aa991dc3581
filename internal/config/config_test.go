package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anstrom/portsweep/internal/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		check   func(t *testing.T, c *Config)
		wantErr bool
	}{
		{
			name: "valid yaml config",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", `
scanning:
  default_ports: "22,80,443"
  default_timeout: 250ms
  default_speed: fast
api:
  port: 9090
logging:
  format: json
`)
			},
			check: func(t *testing.T, c *Config) {
				if c.Scanning.DefaultPorts != "22,80,443" {
					t.Errorf("DefaultPorts = %q", c.Scanning.DefaultPorts)
				}
				if c.Scanning.DefaultTimeout != 250*time.Millisecond {
					t.Errorf("DefaultTimeout = %v", c.Scanning.DefaultTimeout)
				}
				if c.API.Port != 9090 {
					t.Errorf("Port = %d", c.API.Port)
				}
				// Unset keys keep their defaults.
				if c.API.ListenAddr != "127.0.0.1" {
					t.Errorf("ListenAddr = %q, want default", c.API.ListenAddr)
				}
			},
		},
		{
			name: "valid json config",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.json", `{
					"scanning": {"default_speed": "slow"},
					"api": {"port": 8081}
				}`)
			},
			check: func(t *testing.T, c *Config) {
				if c.Scanning.DefaultSpeed != "slow" || c.API.Port != 8081 {
					t.Errorf("unexpected config: %+v", c)
				}
			},
		},
		{
			name: "invalid yaml syntax",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", "api:\n  port: [unterminated\n")
			},
			wantErr: true,
		},
		{
			name: "invalid json syntax",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.json", `{"api": {"port": "x"},}`)
			},
			wantErr: true,
		},
		{
			name: "fails validation",
			path: func(t *testing.T) string {
				return writeConfig(t, "config.yaml", "scanning:\n  default_speed: ludicrous\n")
			},
			wantErr: true,
		},
		{
			name: "nonexistent file returns defaults",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.yaml")
			},
			check: func(t *testing.T, c *Config) {
				if c.Scanning.DefaultPorts != "1-1024" {
					t.Errorf("expected defaults, got %+v", c.Scanning)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.path(t))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsCode(err, errors.CodeConfiguration) {
				t.Errorf("Load() error code = %q, want %q", errors.GetCode(err), errors.CodeConfiguration)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Scanning.DefaultTimeout != 500*time.Millisecond {
		t.Errorf("DefaultTimeout = %v, want 500ms", cfg.Scanning.DefaultTimeout)
	}
	if cfg.IsAuthEnabled() {
		t.Error("auth should be disabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero timeout", func(c *Config) { c.Scanning.DefaultTimeout = 0 }, "default timeout"},
		{"negative concurrency", func(c *Config) { c.Scanning.MaxConcurrency = -1 }, "max concurrency"},
		{"zero concurrent scans", func(c *Config) { c.Scanning.MaxConcurrentScans = 0 }, "max concurrent scans"},
		{"empty ports", func(c *Config) { c.Scanning.DefaultPorts = " " }, "default ports"},
		{"bad speed", func(c *Config) { c.Scanning.DefaultSpeed = "warp" }, "invalid default speed"},
		{"bad port", func(c *Config) { c.API.Port = 70000 }, "API port"},
		{"empty listen addr", func(c *Config) { c.API.ListenAddr = "" }, "listen address"},
		{"plaintext key", func(c *Config) { c.API.APIKeyHash = "secret" }, "bcrypt"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics path"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"disabled api skips api checks", func(c *Config) {
			c.API.Enabled = false
			c.API.Port = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portsweep.yaml")
	cfg := Default()
	cfg.API.Port = 4242

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.API.Port != 4242 {
		t.Errorf("Port = %d, want 4242", loaded.API.Port)
	}
}

func TestGetAPIAddress(t *testing.T) {
	cfg := Default()
	if got := cfg.GetAPIAddress(); got != "127.0.0.1:3000" {
		t.Errorf("GetAPIAddress() = %s", got)
	}
}

func TestFeatureToggles(t *testing.T) {
	cfg := Default()
	if !cfg.IsAPIEnabled() {
		t.Error("API should be enabled by default")
	}
	if cfg.IsAuthEnabled() {
		t.Error("auth should be disabled without a key hash")
	}

	cfg.API.Enabled = false
	cfg.API.APIKeyHash = "$2a$12$abcdefghijklmnopqrstuv"
	if cfg.IsAPIEnabled() {
		t.Error("IsAPIEnabled() = true after disabling")
	}
	if !cfg.IsAuthEnabled() {
		t.Error("IsAuthEnabled() = false with a key hash")
	}
}
