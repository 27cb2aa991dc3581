// Package cli provides command-line interface commands for portsweep.
// This package implements the Cobra-based CLI structure with commands for
// scanning, serving the API and managing API keys.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/logging"
)

// envPrefix namespaces environment overrides, e.g. PORTSWEEP_API_PORT.
const envPrefix = "PORTSWEEP"

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "portsweep",
	Short: "Concurrent TCP port scanner",
	Long: `portsweep is a concurrent TCP connect port scanner.

It expands host and port specifications into probes, runs them on a bounded
worker pool and streams results as they resolve, either on the command line
or through an HTTP and WebSocket API.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvOverrides()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	initLogging()
}

// envOverrides are the config keys that may be set from the environment.
var envOverrides = []string{
	"scanning.default_ports",
	"scanning.default_timeout",
	"scanning.default_speed",
	"scanning.max_concurrency",
	"scanning.max_concurrent_scans",
	"api.listen_addr",
	"api.port",
	"api.api_key_hash",
	"api.static_dir",
	"logging.level",
	"logging.format",
	"logging.output",
	"metrics.enabled",
	"metrics.path",
}

// bindEnvOverrides registers envOverrides so viper.IsSet sees variables that
// have no matching key in a config file.
func bindEnvOverrides() {
	for _, key := range envOverrides {
		if err := viper.BindEnv(key); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind %s: %v\n", key, err)
		}
	}
}

// loadConfig returns the file configuration, or the defaults when no file
// was found, with environment overrides applied and validated.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyOverrides(cfg, viper.GetViper())

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies every override that v has a value for onto cfg.
func applyOverrides(cfg *config.Config, v *viper.Viper) {
	if v.IsSet("scanning.default_ports") {
		cfg.Scanning.DefaultPorts = v.GetString("scanning.default_ports")
	}
	if v.IsSet("scanning.default_timeout") {
		cfg.Scanning.DefaultTimeout = v.GetDuration("scanning.default_timeout")
	}
	if v.IsSet("scanning.default_speed") {
		cfg.Scanning.DefaultSpeed = v.GetString("scanning.default_speed")
	}
	if v.IsSet("scanning.max_concurrency") {
		cfg.Scanning.MaxConcurrency = v.GetInt("scanning.max_concurrency")
	}
	if v.IsSet("scanning.max_concurrent_scans") {
		cfg.Scanning.MaxConcurrentScans = v.GetInt("scanning.max_concurrent_scans")
	}
	if v.IsSet("api.listen_addr") {
		cfg.API.ListenAddr = v.GetString("api.listen_addr")
	}
	if v.IsSet("api.port") {
		cfg.API.Port = v.GetInt("api.port")
	}
	if v.IsSet("api.api_key_hash") {
		cfg.API.APIKeyHash = v.GetString("api.api_key_hash")
	}
	if v.IsSet("api.static_dir") {
		cfg.API.StaticDir = v.GetString("api.static_dir")
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = v.GetString("logging.format")
	}
	if v.IsSet("logging.output") {
		cfg.Logging.Output = v.GetString("logging.output")
	}
	if v.IsSet("metrics.enabled") {
		cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	}
	if v.IsSet("metrics.path") {
		cfg.Metrics.Path = v.GetString("metrics.path")
	}
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg, err := loadConfig()
	if err != nil {
		logging.SetDefault(logging.NewDefault())
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}

	logConfig := logging.Config{
		Level:     logging.LogLevel(cfg.Logging.Level),
		Format:    logging.LogFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.Level == "debug",
	}
	if verbose {
		logConfig.Level = logging.LevelDebug
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)

	if verbose {
		logging.Info("Structured logging initialized", "level", logConfig.Level, "format", cfg.Logging.Format)
	}
}
