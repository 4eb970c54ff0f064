package proc

import (
	"fmt"
	"syscall"
)

// Memory is word-level access to the address space of a stopped traced
// process. Every call can fail: the process may be running, gone, or the
// address unmapped.
type Memory interface {
	PeekWord(addr uint64) (uint64, error)
	PokeWord(addr uint64, word uint64) error
}

// ProcessInternal is the backend a Target drives. Implementations are not
// safe for concurrent use and every method other than Pid must only be
// called while the process is stopped, except Wait which must follow a
// successful Resume or SingleStep.
type ProcessInternal interface {
	Memory

	Pid() int
	// Resume restarts the process, delivering sig if it is not zero.
	Resume(sig syscall.Signal) error
	// SingleStep executes one instruction.
	SingleStep() error
	// Wait blocks until the process stops or terminates.
	Wait() (*WaitStatus, error)
	PC() (uint64, error)
	SetPC(pc uint64) error
}

// WaitStatus is the backend independent result of a wait.
type WaitStatus struct {
	Exited     bool
	ExitStatus int
	Signaled   bool
	Stopped    bool
	// Signal is the stop signal when Stopped and the terminating signal when
	// Signaled.
	Signal syscall.Signal
}

func (ws *WaitStatus) String() string {
	switch {
	case ws.Exited:
		return fmt.Sprintf("exited with status %d", ws.ExitStatus)
	case ws.Signaled:
		return fmt.Sprintf("killed by %v", ws.Signal)
	case ws.Stopped:
		return fmt.Sprintf("stopped by %v", ws.Signal)
	}
	return "unknown"
}

// LaunchFlags specifies options that can be passed to Launch.
type LaunchFlags uint8

const (
	// LaunchDisableASLR runs the target without address space layout
	// randomization.
	LaunchDisableASLR LaunchFlags = 1 << iota
)
