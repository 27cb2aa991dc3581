package targets

import (
	"slices"
	"strconv"
	"strings"

	"github.com/anstrom/portsweep/internal/errors"
)

const (
	minPort = 1
	maxPort = 65535
)

// ParsePorts expands a port specification into ascending, unique ports.
// Values outside 1-65535 are dropped and malformed tokens are skipped.
func ParsePorts(spec string) []uint16 {
	seen := make(map[uint16]struct{})
	for _, token := range strings.Split(spec, listSeparator) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if strings.Contains(token, rangeSeparator) {
			addPortRange(seen, token)
			continue
		}
		if port, ok := parsePort(token); ok && inPortRange(port) {
			seen[uint16(port)] = struct{}{}
		}
	}

	ports := make([]uint16, 0, len(seen))
	for port := range seen {
		ports = append(ports, port)
	}
	slices.Sort(ports)
	return ports
}

// addPortRange adds the in-bounds part of "start-end". A reversed range adds
// nothing. An empty bound reads as 0, so "-5" covers 1-5, and only the first
// two bounds count, so "80-90-100" covers 80-90.
func addPortRange(seen map[uint16]struct{}, token string) {
	bounds := strings.Split(token, rangeSeparator)
	start, okStart := parseBound(bounds[0])
	end, okEnd := parseBound(bounds[1])
	if !okStart || !okEnd || start > end {
		return
	}
	start = max(start, minPort)
	end = min(end, maxPort)
	for p := start; p <= end; p++ {
		seen[uint16(p)] = struct{}{}
	}
}

func parseBound(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	return parsePort(s)
}

func parsePort(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func inPortRange(port int) bool {
	return port >= minPort && port <= maxPort
}

// ValidatePorts returns an InvalidPortSpec error when ports is empty.
func ValidatePorts(spec string, ports []uint16) error {
	if len(ports) == 0 {
		return errors.NewScanErrorWithTarget(errors.CodeInvalidPortSpec,
			"no valid ports in port specification", spec)
	}
	return nil
}
