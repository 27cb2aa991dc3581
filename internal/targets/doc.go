// Package targets expands host and port specifications into the finite,
// deduplicated sets a scan runs against.
//
// Host specifications accept comma separated tokens, each of which may be a
// literal IPv4 address, a dash range ("10.0.0.1-10.0.0.9") or a CIDR block
// ("10.0.0.0/24"). Port specifications accept comma separated ports and
// dash ranges ("22,80,8000-8100").
//
// Malformed tokens are skipped rather than reported. Use ValidateHosts and
// ValidatePorts to turn an empty result into a coded error before starting a
// scan. Host expansion also fails outright with TOO_MANY_HOSTS when the set
// would exceed MaxHosts; it never returns a truncated set.
package targets
