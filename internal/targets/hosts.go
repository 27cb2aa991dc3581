package targets

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"github.com/anstrom/portsweep/internal/errors"
)

// MaxHosts caps the number of addresses a single expansion may produce.
// Specifications that expand to more are rejected with TOO_MANY_HOSTS.
const MaxHosts = 1 << 20

const (
	rangeSeparator = "-"
	cidrSeparator  = "/"
	listSeparator  = ","
)

// ParseHosts expands a host specification into IPv4 addresses in first-seen
// order with duplicates removed. Malformed tokens are skipped; the only error
// is TOO_MANY_HOSTS.
func ParseHosts(spec string) ([]netip.Addr, error) {
	return ExpandHosts(spec)
}

// ExpandHosts merges several host specifications into one deduplicated set.
// Empty specifications are ignored. When the set would exceed MaxHosts it
// returns no addresses and a TOO_MANY_HOSTS error naming the offending token.
func ExpandHosts(specs ...string) ([]netip.Addr, error) {
	set := newHostSet()
	for _, spec := range specs {
		for _, token := range strings.Split(spec, listSeparator) {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if !set.expand(token) {
				return nil, errors.NewScanErrorWithTarget(errors.CodeTooManyHosts,
					fmt.Sprintf("host specification expands to more than %d addresses", MaxHosts), token)
			}
		}
	}
	return set.addrs, nil
}

type hostSet struct {
	seen  map[netip.Addr]struct{}
	addrs []netip.Addr
}

func newHostSet() *hostSet {
	return &hostSet{seen: make(map[netip.Addr]struct{})}
}

// add reports false when addr would be a new address beyond MaxHosts.
func (s *hostSet) add(addr netip.Addr) bool {
	if _, ok := s.seen[addr]; ok {
		return true
	}
	if len(s.addrs) >= MaxHosts {
		return false
	}
	s.seen[addr] = struct{}{}
	s.addrs = append(s.addrs, addr)
	return true
}

func (s *hostSet) expand(token string) bool {
	switch {
	case strings.Contains(token, cidrSeparator):
		first, last, ok := cidrBounds(token)
		if !ok {
			return true
		}
		return s.addRange(first, last)
	case strings.Contains(token, rangeSeparator):
		first, last, ok := rangeBounds(token)
		if !ok {
			return true
		}
		return s.addRange(first, last)
	default:
		addr, ok := parseIPv4(token)
		if !ok {
			return true
		}
		return s.add(addr)
	}
}

func (s *hostSet) addRange(first, last uint32) bool {
	if uint64(last)-uint64(first)+1 > MaxHosts {
		return false
	}
	for n := uint64(first); n <= uint64(last); n++ {
		if !s.add(fromUint32(uint32(n))) {
			return false
		}
	}
	return true
}

// cidrBounds returns the network and broadcast addresses of an IPv4 prefix.
// Both are part of the expansion.
func cidrBounds(token string) (first, last uint32, ok bool) {
	prefix, err := netip.ParsePrefix(token)
	if err != nil || !prefix.Addr().Is4() {
		return 0, 0, false
	}
	prefix = prefix.Masked()
	first = toUint32(prefix.Addr())
	hostBits := 32 - prefix.Bits()
	last = first | uint32((uint64(1)<<hostBits)-1)
	return first, last, true
}

// rangeBounds parses "A-B". A reversed range yields nothing.
func rangeBounds(token string) (first, last uint32, ok bool) {
	start, end, found := strings.Cut(token, rangeSeparator)
	if !found {
		return 0, 0, false
	}
	a, okA := parseIPv4(strings.TrimSpace(start))
	b, okB := parseIPv4(strings.TrimSpace(end))
	if !okA || !okB {
		return 0, 0, false
	}
	first, last = toUint32(a), toUint32(b)
	if first > last {
		return 0, 0, false
	}
	return first, last, true
}

func parseIPv4(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return netip.Addr{}, false
	}
	return addr, true
}

func toUint32(addr netip.Addr) uint32 {
	b := addr.As4()
	return binary.BigEndian.Uint32(b[:])
}

func fromUint32(n uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return netip.AddrFrom4(b)
}

// ValidateHosts returns an InvalidHostSpec error when hosts is empty.
func ValidateHosts(spec string, hosts []netip.Addr) error {
	if len(hosts) == 0 {
		return errors.NewScanErrorWithTarget(errors.CodeInvalidHostSpec,
			"no valid IPv4 addresses in host specification", spec)
	}
	return nil
}
