// Package cli provides command-line interface commands for portsweep.
// This file implements the serve command that runs the HTTP and WebSocket API.
package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/anstrom/portsweep/internal/api"
	apihandlers "github.com/anstrom/portsweep/internal/api/handlers"
	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scanner"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Run the portsweep HTTP API and WebSocket server in the foreground.

Scans started through the API are held in memory and remain queryable for
scanning.job_retention after they finish. Set api.api_key_hash (see
'portsweep apikey generate') to require an API key.`,
	Example: `  portsweep serve
  portsweep serve --host 0.0.0.0 --port 8080
  portsweep serve --static ./public`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Override api.listen_addr")
	serveCmd.Flags().Int("port", 0, "Override api.port")
	serveCmd.Flags().String("static", "", "Serve a web UI from this directory")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyServeFlags(cfg, cmd.Flags()); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !cfg.IsAPIEnabled() {
		return fmt.Errorf("API server is disabled (api.enabled is false)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.GetGlobalMetrics()
	s := scanner.New(scanner.Config{MaxConcurrency: cfg.Scanning.MaxConcurrency}, nil, m)
	manager := scanner.NewManager(s, scanner.ManagerConfig{
		MaxConcurrentScans: cfg.Scanning.MaxConcurrentScans,
		Retention:          cfg.Scanning.JobRetention,
	})
	defer manager.Close()

	server, err := api.New(cfg, manager, m, apihandlers.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	printStartupInfo(cmd.OutOrStdout(), cfg)

	if err := server.Start(ctx); err != nil {
		return err
	}
	logging.Info("Server shutdown complete")
	return nil
}

// applyServeFlags lets flags given on the command line win over file and
// environment.
func applyServeFlags(cfg *config.Config, flags *pflag.FlagSet) error {
	var err error
	if flags.Changed("host") {
		if cfg.API.ListenAddr, err = flags.GetString("host"); err != nil {
			return err
		}
	}
	if flags.Changed("port") {
		if cfg.API.Port, err = flags.GetInt("port"); err != nil {
			return err
		}
	}
	if flags.Changed("static") {
		if cfg.API.StaticDir, err = flags.GetString("static"); err != nil {
			return err
		}
	}
	return nil
}

func printStartupInfo(w io.Writer, cfg *config.Config) {
	base := "http://" + cfg.GetAPIAddress()
	bold := color.New(color.Bold)

	_, _ = bold.Fprintf(w, "portsweep %s listening on %s\n", version, base)
	fmt.Fprintf(w, "  API:       %s/api/v1\n", base)
	fmt.Fprintf(w, "  WebSocket: ws://%s/ws\n", cfg.GetAPIAddress())
	fmt.Fprintf(w, "  Docs:      %s/swagger/\n", base)
	if cfg.Metrics.Enabled {
		fmt.Fprintf(w, "  Metrics:   %s%s\n", base, cfg.Metrics.Path)
	}
	if cfg.IsAuthEnabled() {
		fmt.Fprintln(w, "  Auth:      API key required")
	} else {
		_, _ = color.New(color.FgYellow).Fprintln(w, "  Auth:      disabled (set api.api_key_hash to enable)")
	}
}

