package native

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/memviz/pkg/proc"
)

// Process reads the memory of a live process. The process is not stopped:
// walks of data structures that the process is modifying may observe
// inconsistent states.
type Process struct {
	pid int
}

// Attach returns a reader for the memory of process pid.
func Attach(pid int) (*Process, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	if _, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid))); err != nil {
		return nil, fmt.Errorf("could not attach to pid %d: %v", pid, err)
	}
	return &Process{pid: pid}, nil
}

// Pid returns the process id.
func (p *Process) Pid() int {
	return p.pid
}

// ReadMemory implements proc.MemoryReader using process_vm_readv.
func (p *Process) ReadMemory(data []byte, addr uint64) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	local := []sys.Iovec{{Base: &data[0]}}
	local[0].SetLen(len(data))
	remote := []sys.RemoteIovec{{Base: uintptr(addr), Len: len(data)}}
	n, err := sys.ProcessVMReadv(p.pid, local, remote, 0)
	if err != nil {
		return 0, &proc.AccessError{Addr: addr, Len: len(data), Err: err}
	}
	if n != len(data) {
		return n, &proc.AccessError{Addr: addr, Len: len(data), Err: fmt.Errorf("short read (%d bytes)", n)}
	}
	return n, nil
}
