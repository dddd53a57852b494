package native

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"unsafe"

	"github.com/go-delve/memviz/pkg/proc"
)

func TestReadOwnMemory(t *testing.T) {
	p, err := Attach(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	want := []byte("memviz reads itself")
	got := make([]byte, len(want))
	n, err := p.ReadMemory(got, uint64(uintptr(unsafe.Pointer(&want[0]))))
	if err != nil {
		t.Skipf("process_vm_readv not permitted: %v", err)
	}
	if n != len(want) || !bytes.Equal(got, want) {
		t.Errorf("read %q, expected %q", got[:n], want)
	}

	_, err = p.ReadMemory(got, 0)
	var aerr *proc.AccessError
	if !errors.As(err, &aerr) {
		t.Errorf("expected access error reading address 0, got %v", err)
	}
}

func TestAttachInvalid(t *testing.T) {
	if _, err := Attach(0); err == nil {
		t.Error("expected error attaching to pid 0")
	}
}
