// Package output renders scan results for the console: streaming open-port
// lines, a summary table and machine-readable JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/portsweep/internal/scanning"
)

var (
	openLabel  = color.New(color.FgGreen, color.Bold)
	infoColor  = color.New(color.FgBlue)
	mutedColor = color.New(color.FgHiBlack)
	foundColor = color.New(color.FgGreen)
)

// Console writes human-readable scan output.
type Console struct {
	w io.Writer
}

// NewConsole creates a console writer on w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Header announces the scan about to run.
func (c *Console) Header(hosts, ports, concurrency int, timeout time.Duration) {
	_, _ = infoColor.Fprintf(c.w, "Starting scan on %d IP(s) for %d port(s)...\n", hosts, ports)
	_, _ = mutedColor.Fprintf(c.w, "Concurrency: %d, Timeout: %dms\n", concurrency, timeout.Milliseconds())
}

// Open prints one open port as "[OPEN] host:port".
func (c *Console) Open(result scanning.Result) {
	_, _ = openLabel.Fprint(c.w, "[OPEN]")
	_, _ = fmt.Fprintf(c.w, " %s\n", result.Address())
}

// Summary prints the elapsed time and open-port count.
func (c *Console) Summary(elapsed time.Duration, results []scanning.Result) {
	_, _ = infoColor.Fprintf(c.w, "\nScan completed in %ss\n", formatSeconds(elapsed))
	_, _ = foundColor.Fprintf(c.w, "Found %d open ports.\n", CountOpen(results))
}

// Stopped reports a scan that ended early.
func (c *Console) Stopped(elapsed time.Duration, completed, total int) {
	_, _ = color.New(color.FgYellow).Fprintf(c.w, "\nScan stopped after %ss (%d/%d probes)\n",
		formatSeconds(elapsed), completed, total)
}

// Table renders open ports grouped by host, ordered by address then port.
func (c *Console) Table(results []scanning.Result) {
	open := OpenResults(results)
	if len(open) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.w)
	table.Header("Host", "Port", "Status")
	for _, r := range open {
		_ = table.Append([]string{r.Host, strconv.Itoa(int(r.Port)), string(r.Status)})
	}
	_ = table.Render()
}

// WriteJSON writes results as an indented JSON array.
func WriteJSON(w io.Writer, results []scanning.Result) error {
	if results == nil {
		results = []scanning.Result{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

// OpenResults returns the open results sorted by host then port.
func OpenResults(results []scanning.Result) []scanning.Result {
	var open []scanning.Result
	for _, r := range results {
		if r.IsOpen() {
			open = append(open, r)
		}
	}
	SortResults(open)
	return open
}

// SortResults orders results by numeric host address, then port.
func SortResults(results []scanning.Result) {
	slices.SortFunc(results, func(a, b scanning.Result) int {
		if c := compareHosts(a.Host, b.Host); c != 0 {
			return c
		}
		return int(a.Port) - int(b.Port)
	})
}

// CountOpen returns how many results are open.
func CountOpen(results []scanning.Result) int {
	n := 0
	for _, r := range results {
		if r.IsOpen() {
			n++
		}
	}
	return n
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
