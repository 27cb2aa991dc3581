package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portsweep/internal/scanning"
)

func init() {
	color.NoColor = true
}

func sampleResults() []scanning.Result {
	return []scanning.Result{
		{Host: "10.0.0.10", Port: 22, Status: scanning.StatusOpen},
		{Host: "10.0.0.2", Port: 443, Status: scanning.StatusOpen},
		{Host: "10.0.0.2", Port: 80, Status: scanning.StatusOpen},
		{Host: "10.0.0.2", Port: 81, Status: scanning.StatusClosed, Error: "connect: no route to host"},
		{Host: "10.0.0.3", Port: 80, Status: scanning.StatusFiltered},
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Header(2, 1024, 20, 500*time.Millisecond)
	c.Open(scanning.Result{Host: "127.0.0.1", Port: 8080, Status: scanning.StatusOpen})
	c.Summary(1500*time.Millisecond, sampleResults())

	out := buf.String()
	assert.Contains(t, out, "Starting scan on 2 IP(s) for 1024 port(s)...")
	assert.Contains(t, out, "Concurrency: 20, Timeout: 500ms")
	assert.Contains(t, out, "[OPEN] 127.0.0.1:8080\n")
	assert.Contains(t, out, "Scan completed in 1.500s")
	assert.Contains(t, out, "Found 3 open ports.")
}

func TestConsoleStopped(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf).Stopped(2*time.Second, 10, 40)
	assert.Contains(t, buf.String(), "Scan stopped after 2.000s (10/40 probes)")
}

func TestConsoleTable(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf).Table(sampleResults())

	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, strings.ToUpper(out), "HOST")
	assert.NotContains(t, out, "filtered")

	// Numeric host order: 10.0.0.2 sorts before 10.0.0.10.
	assert.Less(t, strings.Index(out, "10.0.0.2 "), strings.Index(out, "10.0.0.10"))

	buf.Reset()
	NewConsole(&buf).Table(nil)
	assert.Empty(t, buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResults()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 5)
	assert.Equal(t, "open", decoded[0]["status"])
	assert.NotContains(t, decoded[0], "error")
	assert.Equal(t, "connect: no route to host", decoded[3]["error"])

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestOpenResults(t *testing.T) {
	open := OpenResults(sampleResults())
	require.Len(t, open, 3)
	assert.Equal(t, "10.0.0.2:80", open[0].Address())
	assert.Equal(t, "10.0.0.2:443", open[1].Address())
	assert.Equal(t, "10.0.0.10:22", open[2].Address())
	assert.Equal(t, 3, CountOpen(sampleResults()))
}
