package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/output"
	"github.com/anstrom/portsweep/internal/scanner"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/targets"
)

// Scan defaults match the web UI.
const (
	defaultScanPorts   = "1-1024"
	defaultScanTimeout = 500
)

// scanOptions collects the scan command flags.
type scanOptions struct {
	ip          string
	ipRange     string
	cidr        string
	ports       string
	timeoutMS   int
	speed       string
	concurrency int
	json        bool
	noProgress  bool
}

var scanOpts scanOptions

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan hosts for open TCP ports",
	Long: `Scan IPv4 hosts for open TCP ports with full connect probes.

Targets may be given as a comma-separated list (--ip), a dash range
(--ip-range) and a CIDR block (--cidr); the sets are merged and
deduplicated. Open ports are printed as they are found. Press Ctrl-C to
stop early and print what was collected.`,
	Example: `  portsweep scan --ip 192.168.1.1
  portsweep scan --ip-range 192.168.1.10-192.168.1.20 --ports 22,80,443
  portsweep scan --cidr 10.0.0.0/24 --ports 1-1024 --speed fast
  portsweep scan --ip 127.0.0.1 --ports 1-65535 --concurrency 500 --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !verbose {
			quietLogging()
		}

		s := scanner.New(scanner.Config{MaxConcurrency: cfg.Scanning.MaxConcurrency}, nil, nil)
		return runScanWith(ctx, s, scanOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	flags := scanCmd.Flags()
	flags.StringVar(&scanOpts.ip, "ip", "", "IP addresses to scan (comma-separated)")
	flags.StringVar(&scanOpts.ipRange, "ip-range", "", "IP range to scan (e.g. 192.168.1.1-192.168.1.20)")
	flags.StringVar(&scanOpts.cidr, "cidr", "", "CIDR block to scan (e.g. 192.168.1.0/24)")
	flags.StringVarP(&scanOpts.ports, "ports", "p", defaultScanPorts, "Ports to scan: '80,443' or '1-1024'")
	flags.IntVarP(&scanOpts.timeoutMS, "timeout", "t", defaultScanTimeout, "Connect timeout per probe in milliseconds")
	flags.StringVarP(&scanOpts.speed, "speed", "s", string(scanning.SpeedNormal), "Scan speed: fast, normal or slow")
	flags.IntVarP(&scanOpts.concurrency, "concurrency", "c", 0, "Worker count, overrides --speed")
	flags.BoolVar(&scanOpts.json, "json", false, "Print results as JSON")
	flags.BoolVar(&scanOpts.noProgress, "no-progress", false, "Disable the progress bar")
}

// quietLogging keeps scan lifecycle logs off the terminal unless --verbose.
func quietLogging() {
	cfg := logging.Default().Config()
	if logging.ParseLevel(cfg.Level) < logging.ParseLevel(logging.LevelWarn) {
		cfg.Level = logging.LevelWarn
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return
	}
	logging.SetDefault(logger)
}

// options converts the flags into scan options.
func (o scanOptions) options() (scanning.Options, error) {
	speed, ok := scanning.ParseSpeed(o.speed)
	if !ok {
		return scanning.Options{}, fmt.Errorf("invalid speed %q: use fast, normal or slow", o.speed)
	}
	if o.concurrency < 0 {
		return scanning.Options{}, fmt.Errorf("concurrency must not be negative")
	}
	return scanning.Options{
		Speed:       speed,
		Concurrency: o.concurrency,
		Timeout:     time.Duration(o.timeoutMS) * time.Millisecond,
	}, nil
}

// runScanWith runs one scan to completion or until ctx is cancelled, writing
// results to out and progress to errOut.
func runScanWith(ctx context.Context, s *scanner.Scanner, o scanOptions, out, errOut io.Writer) error {
	hosts, err := targets.ExpandHosts(o.ip, o.ipRange, o.cidr)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		return fmt.Errorf("no IP addresses specified")
	}
	ports := targets.ParsePorts(o.ports)
	if len(ports) == 0 {
		return fmt.Errorf("no valid ports specified")
	}
	opts, err := o.options()
	if err != nil {
		return err
	}

	job, err := s.Start(context.Background(), hosts, ports, opts)
	if err != nil {
		return err
	}

	go func() {
		select {
		case <-ctx.Done():
			job.Stop()
		case <-job.Done():
		}
	}()

	console := output.NewConsole(out)
	if !o.json {
		console.Header(len(hosts), len(ports), job.Concurrency(), opts.EffectiveTimeout())
	}

	var bar *progressbar.ProgressBar
	if !o.json && !o.noProgress {
		bar = newProgressBar(job.Total(), errOut)
	}

	started := time.Now()
	var final scanner.Event
	for event := range job.Events() {
		switch event.Type {
		case scanner.EventResult:
			if bar != nil {
				_ = bar.Add(1)
			}
			if !o.json && event.Result.IsOpen() {
				if bar != nil {
					_ = bar.Clear()
				}
				console.Open(*event.Result)
			}
		default:
			final = event
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	elapsed := time.Since(started)

	results := job.Results()
	output.SortResults(results)

	if o.json {
		return output.WriteJSON(out, results)
	}

	if final.Type == scanner.EventStopped {
		progress := job.Progress()
		console.Stopped(elapsed, progress.Completed, progress.Total)
	} else {
		console.Summary(elapsed, results)
	}
	console.Table(results)
	return nil
}

func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionSetDescription("[cyan]Scanning[reset]"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
