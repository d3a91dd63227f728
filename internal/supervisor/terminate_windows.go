//go:build windows

package supervisor

import "os"

// terminate kills the worker; Windows has no SIGTERM equivalent for console
// children started without a process group.
func terminate(p *os.Process) error {
	return p.Kill()
}
