package output

import (
	"net/netip"
	"strings"
)

// compareHosts compares addresses numerically, falling back to string order
// for anything that does not parse.
func compareHosts(a, b string) int {
	addrA, errA := netip.ParseAddr(a)
	addrB, errB := netip.ParseAddr(b)
	if errA == nil && errB == nil {
		return addrA.Compare(addrB)
	}
	return strings.Compare(a, b)
}
