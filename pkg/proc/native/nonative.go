//go:build !linux || !amd64

package native

import (
	"errors"
	"syscall"

	"github.com/minidbg/minidbg/pkg/proc"
)

var ErrNativeBackendDisabled = errors.New("native backend not supported on this platform")

// Launch returns ErrNativeBackendDisabled.
func Launch(_ []string, _ string, _ proc.LaunchFlags) (*Process, error) {
	return nil, ErrNativeBackendDisabled
}

// Wait returns ErrNativeBackendDisabled.
func (dbp *Process) Wait() (*proc.WaitStatus, error) {
	return nil, ErrNativeBackendDisabled
}

// Kill returns ErrNativeBackendDisabled.
func (dbp *Process) Kill() error {
	return ErrNativeBackendDisabled
}

// PeekWord returns ErrNativeBackendDisabled.
func (dbp *Process) PeekWord(addr uint64) (uint64, error) {
	return 0, ErrNativeBackendDisabled
}

// PokeWord returns ErrNativeBackendDisabled.
func (dbp *Process) PokeWord(addr, word uint64) error {
	return ErrNativeBackendDisabled
}

// Resume returns ErrNativeBackendDisabled.
func (dbp *Process) Resume(sig syscall.Signal) error {
	return ErrNativeBackendDisabled
}

// SingleStep returns ErrNativeBackendDisabled.
func (dbp *Process) SingleStep() error {
	return ErrNativeBackendDisabled
}

// PC returns ErrNativeBackendDisabled.
func (dbp *Process) PC() (uint64, error) {
	return 0, ErrNativeBackendDisabled
}

// SetPC returns ErrNativeBackendDisabled.
func (dbp *Process) SetPC(pc uint64) error {
	return ErrNativeBackendDisabled
}
