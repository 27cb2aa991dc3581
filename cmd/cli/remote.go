// Package cli provides command-line interface commands for portsweep.
// This file implements commands that drive scans on a running server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	apihandlers "github.com/anstrom/portsweep/internal/api/handlers"
	"github.com/anstrom/portsweep/internal/output"
	"github.com/anstrom/portsweep/internal/scanner"
)

const remotePollInterval = 500 * time.Millisecond

var (
	remoteServer   string
	remoteJSON     bool
	remoteOpenOnly bool
	remoteWait     bool
	remoteRequest  apihandlers.ScanRequest
)

// remoteCmd represents the remote command group
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Run and inspect scans on a portsweep server",
	Long: `Start, inspect and stop scans on a running 'portsweep serve'.

The server defaults to the configured api.listen_addr and api.port; use
--server to target another. Set PORTSWEEP_API_KEY (or
PORTSWEEP_API_KEY_FILE) when the server requires an API key.`,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

var remoteStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a scan on the server",
	Example: `  portsweep remote start --hosts 10.0.0.0/24 --ports 22,80,443
  portsweep remote start --hosts 10.0.0.1-10.0.0.9 --speed fast --wait`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := remoteClient()
		if err != nil {
			return err
		}
		return runRemoteStart(cmd.Context(), client, remoteRequest, remoteWait, cmd.OutOrStdout())
	},
}

var remoteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List scans on the server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := remoteClient()
		if err != nil {
			return err
		}
		resp, err := client.ListScans(cmd.Context())
		if err != nil {
			return describeAPIError(err, "list scans")
		}
		if remoteJSON {
			return writeIndentedJSON(cmd.OutOrStdout(), resp)
		}
		return displayScanList(cmd.OutOrStdout(), resp.Scans)
	},
}

var remoteGetCmd = &cobra.Command{
	Use:   "get <scan-id>",
	Short: "Show a scan and its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := remoteClient()
		if err != nil {
			return err
		}
		resp, err := client.GetScan(cmd.Context(), args[0], remoteOpenOnly)
		if err != nil {
			return describeAPIError(err, "get scan")
		}
		if remoteJSON {
			return writeIndentedJSON(cmd.OutOrStdout(), resp)
		}
		displayScan(cmd.OutOrStdout(), resp)
		return nil
	},
}

var remoteStopCmd = &cobra.Command{
	Use:   "stop <scan-id>",
	Short: "Stop a running scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := remoteClient()
		if err != nil {
			return err
		}
		summary, err := client.StopScan(cmd.Context(), args[0])
		if err != nil {
			return describeAPIError(err, "stop scan")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Scan %s %s (%d/%d probes)\n",
			summary.ID, summary.State, summary.Progress.Completed, summary.Progress.Total)
		return nil
	},
}

var remoteHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := remoteClient()
		if err != nil {
			return err
		}
		health, err := client.Health(cmd.Context())
		if err != nil {
			return describeAPIError(err, "health check")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Status: %s (active scans %d, free slots %d, uptime %s)\n",
			health.Status, health.Scans.Active, health.Scans.Available, health.Uptime)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.AddCommand(remoteStartCmd, remoteListCmd, remoteGetCmd, remoteStopCmd, remoteHealthCmd)

	remoteCmd.PersistentFlags().StringVar(&remoteServer, "server", "", "Server URL (default from api.listen_addr and api.port)")
	remoteCmd.PersistentFlags().BoolVar(&remoteJSON, "json", false, "Print raw JSON")

	flags := remoteStartCmd.Flags()
	flags.StringVar(&remoteRequest.Hosts, "hosts", "", "Hosts: list, dash range or CIDR")
	flags.StringVar(&remoteRequest.Ports, "ports", "", "Ports (server default when empty)")
	flags.StringVar(&remoteRequest.Speed, "speed", "", "Scan speed: fast, normal or slow")
	flags.IntVar(&remoteRequest.Concurrency, "concurrency", 0, "Worker count, overrides --speed")
	flags.IntVar(&remoteRequest.TimeoutMS, "timeout", 0, "Connect timeout per probe in milliseconds")
	flags.BoolVar(&remoteWait, "wait", false, "Wait for the scan to finish and print open ports")
	_ = remoteStartCmd.MarkFlagRequired("hosts")

	remoteGetCmd.Flags().BoolVar(&remoteOpenOnly, "open-only", false, "Only include open ports")
}

func remoteClient() (*APIClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newAPIClientFromConfig(cfg, remoteServer)
}

// runRemoteStart starts a scan and, with wait, polls until it finishes.
func runRemoteStart(ctx context.Context, client *APIClient, req apihandlers.ScanRequest, wait bool, w io.Writer) error {
	created, err := client.CreateScan(ctx, req)
	if err != nil {
		return describeAPIError(err, "start scan")
	}
	fmt.Fprintf(w, "Started scan %s (%d probes)\n", created.ID, created.Total)
	if !wait {
		return nil
	}

	ticker := time.NewTicker(remotePollInterval)
	defer ticker.Stop()
	for {
		scan, err := client.GetScan(ctx, created.ID, true)
		if err != nil {
			return describeAPIError(err, "get scan")
		}
		if scan.State != scanner.StateRunning {
			displayScan(w, scan)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func displayScanList(w io.Writer, scans []scanner.Summary) error {
	if len(scans) == 0 {
		_, err := fmt.Fprintln(w, "No scans.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Status", "Hosts", "Ports", "Progress", "Open", "Started")
	for _, s := range scans {
		_ = table.Append([]string{
			s.ID,
			string(s.State),
			strconv.Itoa(s.Hosts),
			strconv.Itoa(s.Ports),
			fmt.Sprintf("%d/%d", s.Progress.Completed, s.Progress.Total),
			strconv.Itoa(s.Progress.Open),
			s.StartedAt.Local().Format(time.DateTime),
		})
	}
	return table.Render()
}

func displayScan(w io.Writer, scan *apihandlers.ScanResponse) {
	fmt.Fprintf(w, "Scan %s: %s, %d/%d probes (%.1f%%), %d open\n",
		scan.ID, scan.State, scan.Progress.Completed, scan.Progress.Total, scan.Percent, scan.Progress.Open)
	output.NewConsole(w).Table(scan.Results)
}

func writeIndentedJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
