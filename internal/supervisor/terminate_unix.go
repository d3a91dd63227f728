//go:build !windows

package supervisor

import (
	"os"
	"syscall"
)

// terminate asks the worker to exit so it can flush its own output first.
func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
