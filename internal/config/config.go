// Package config loads and validates portsweep configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anstrom/portsweep/internal/errors"
)

const (
	configDirPerm  = 0750
	configFilePerm = 0600

	maxPort = 65535
)

// Config represents the complete portsweep configuration
type Config struct {
	// Scanning configuration
	Scanning ScanningConfig `yaml:"scanning" json:"scanning"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// ScanningConfig holds scanning-related settings
type ScanningConfig struct {
	// Default ports to scan when a request names none
	DefaultPorts string `yaml:"default_ports" json:"default_ports"`

	// Connect timeout per probe
	DefaultTimeout time.Duration `yaml:"default_timeout" json:"default_timeout"`

	// Speed tier used when none is given (fast, normal, slow)
	DefaultSpeed string `yaml:"default_speed" json:"default_speed"`

	// Upper bound on workers per scan, 0 means unbounded
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`

	// Scans the API server runs at once; further requests are rejected
	MaxConcurrentScans int `yaml:"max_concurrent_scans" json:"max_concurrent_scans"`

	// How long finished scans stay queryable over the API
	JobRetention time.Duration `yaml:"job_retention" json:"job_retention"`
}

// APIConfig holds API server settings
type APIConfig struct {
	// Enable API server
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	// bcrypt hash of the API key; empty disables authentication
	APIKeyHash string `yaml:"api_key_hash" json:"api_key_hash"`

	// Directory of static files served at the root, optional
	StaticDir string `yaml:"static_dir" json:"static_dir"`

	// CORS settings
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Server timeouts
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`

	// Maximum request body size
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	// Enable CORS
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Allowed origins
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// Allowed methods
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`

	// Allowed headers
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Enable request logging for API
	RequestLogging bool `yaml:"request_logging" json:"request_logging"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Scanning: ScanningConfig{
			DefaultPorts:       "1-1024",
			DefaultTimeout:     500 * time.Millisecond,
			DefaultSpeed:       "normal",
			MaxConcurrency:     1000,
			MaxConcurrentScans: 8,
			JobRetention:       10 * time.Minute,
		},
		API: APIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1",
			Port:       3000,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-API-Key"},
			},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxRequestSize: 1024 * 1024, // 1MB
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			Output:         "stderr",
			RequestLogging: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Start with defaults
	config := Default()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil // Return defaults if no config file
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// YAML is a superset of JSON, so one decoder covers both extensions.
	if err := yaml.Unmarshal(data, config); err != nil {
		switch filepath.Ext(path) {
		case ".json":
			return nil, errors.WrapScanErrorWithTarget(errors.CodeConfiguration, "failed to parse JSON config", path, err)
		default:
			return nil, errors.WrapScanErrorWithTarget(errors.CodeConfiguration, "failed to parse YAML config", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeConfiguration, "invalid configuration", path, err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), configDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, configFilePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.validateScanning(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateScanning() error {
	if c.Scanning.DefaultTimeout <= 0 {
		return fmt.Errorf("default timeout must be positive")
	}
	if c.Scanning.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency must not be negative")
	}
	if c.Scanning.MaxConcurrentScans <= 0 {
		return fmt.Errorf("max concurrent scans must be positive")
	}
	if c.Scanning.JobRetention < 0 {
		return fmt.Errorf("job retention must not be negative")
	}
	if strings.TrimSpace(c.Scanning.DefaultPorts) == "" {
		return fmt.Errorf("default ports are required")
	}

	validSpeeds := map[string]bool{
		"fast":   true,
		"normal": true,
		"slow":   true,
	}
	if !validSpeeds[c.Scanning.DefaultSpeed] {
		return fmt.Errorf("invalid default speed: %s", c.Scanning.DefaultSpeed)
	}
	return nil
}

func (c *Config) validateAPI() error {
	if !c.API.Enabled {
		return nil
	}
	if c.API.Port <= 0 || c.API.Port > maxPort {
		return fmt.Errorf("API port must be between 1 and 65535")
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("API listen address is required when API is enabled")
	}
	if c.API.APIKeyHash != "" && !strings.HasPrefix(c.API.APIKeyHash, "$2") {
		return fmt.Errorf("API key hash must be a bcrypt hash")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path must start with '/'")
	}
	return nil
}

func (c *Config) validateLogging() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

// IsAPIEnabled returns true if API server is enabled
func (c *Config) IsAPIEnabled() bool {
	return c.API.Enabled
}

// IsAuthEnabled reports whether requests must carry an API key.
func (c *Config) IsAuthEnabled() bool {
	return c.API.APIKeyHash != ""
}
