// Package portutil implements the Port Manager (§4.6): TCP availability
// probes and range scans, treating running containers as authoritative
// owners of the ports they hold.
package portutil

import (
	"fmt"
	"net"

	"github.com/robertjbass/spindb/internal/errs"
)

// Range is an inclusive port range to scan.
type Range struct {
	Lo, Hi int
}

// IsAvailable attempts to bind to 127.0.0.1:port, releasing immediately.
// A bind failure (in use, or otherwise unbindable) reports false, never
// an error — "is this port free" is a yes/no question at this layer.
func IsAvailable(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// Owned reports whether port is recorded as held by a running container;
// callers pass the current catalog's running-container ports so the scan
// can skip them even if the OS would currently let us bind (e.g. the
// owning process is starting up and hasn't bound yet).
type Owned func(port int) bool

// FindAvailable probes preferredPort first (if nonzero and not owned),
// then scans rng skipping owned ports, returning the first free port.
func FindAvailable(preferredPort int, rng Range, owned Owned) (int, error) {
	if owned == nil {
		owned = func(int) bool { return false }
	}

	if preferredPort != 0 && !owned(preferredPort) && IsAvailable(preferredPort) {
		return preferredPort, nil
	}

	for port := rng.Lo; port <= rng.Hi; port++ {
		if owned(port) {
			continue
		}
		if IsAvailable(port) {
			return port, nil
		}
	}

	return 0, errs.New(errs.KindNoPortsAvailable,
		fmt.Sprintf("no available port in range %d-%d", rng.Lo, rng.Hi))
}
