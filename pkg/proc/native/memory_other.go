//go:build !linux

package native

import (
	"errors"
	"runtime"
)

// ErrNativeBackendDisabled is returned by Attach on systems where memory of
// other processes can not be read.
var ErrNativeBackendDisabled = errors.New("live process memory is not supported on " + runtime.GOOS)

// Process reads the memory of a live process.
type Process struct {
	pid int
}

// Attach returns ErrNativeBackendDisabled.
func Attach(pid int) (*Process, error) {
	return nil, ErrNativeBackendDisabled
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.pid
}

// ReadMemory always fails.
func (p *Process) ReadMemory(data []byte, addr uint64) (int, error) {
	return 0, ErrNativeBackendDisabled
}
