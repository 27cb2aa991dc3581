// Package scanning defines the connect-probe primitives shared by the
// portsweep scan engine.
//
// A Task names one host:port pair and the timeout to probe it with. A Prober
// turns a Task into exactly one Result whose Status is one of:
//
//   - open: the TCP handshake completed before the timeout
//   - closed: the remote stack refused the connection, or the dial failed
//     for any other socket-level reason
//   - filtered: the timeout elapsed with no answer
//   - error: the worker servicing the task failed before a probe resolved
//
// TCPProber is the production implementation. It never exchanges data with
// the remote side; the connection is closed as soon as it is established.
//
// # Usage
//
//	prober := scanning.NewTCPProber()
//	result := prober.Probe(ctx, scanning.Task{
//		Host:    netip.MustParseAddr("127.0.0.1"),
//		Port:    22,
//		Timeout: 500 * time.Millisecond,
//	})
//	fmt.Println(result.Address(), result.Status)
//
// Options carries the speed tier, explicit concurrency override and timeout a
// scan was started with. Speed tiers map to worker counts: fast 100,
// normal 20, slow 5.
package scanning
