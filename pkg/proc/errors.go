package proc

import (
	"fmt"
)

// ProcessNotFoundError is returned when the target executable could not be
// resolved or executed.
type ProcessNotFoundError struct {
	Path string
	Err  error
}

func (e *ProcessNotFoundError) Error() string {
	return fmt.Sprintf("could not launch %s: %v", e.Path, e.Err)
}

func (e *ProcessNotFoundError) Unwrap() error { return e.Err }

// TraceSyscallError is returned when a trace, memory access or wait
// primitive fails. Err is normally a syscall.Errno.
type TraceSyscallError struct {
	Op  string
	Pid int
	Err error
}

func (e *TraceSyscallError) Error() string {
	return fmt.Sprintf("%s on process %d: %v", e.Op, e.Pid, e.Err)
}

func (e *TraceSyscallError) Unwrap() error { return e.Err }

// TraceAccessError is returned when reading or writing the memory of the
// traced process fails while enabling or disabling a breakpoint.
type TraceAccessError struct {
	Op   string // "read" or "write"
	Pid  int
	Addr uint64
	Err  error
}

func (e *TraceAccessError) Error() string {
	return fmt.Sprintf("could not %s memory at %#x of process %d: %v", e.Op, e.Addr, e.Pid, e.Err)
}

func (e *TraceAccessError) Unwrap() error { return e.Err }

// TraceWaitError is returned when waiting for a stop notification fails.
type TraceWaitError struct {
	Pid int
	Err error
}

func (e *TraceWaitError) Error() string {
	return fmt.Sprintf("waiting for process %d failed: %v", e.Pid, e.Err)
}

func (e *TraceWaitError) Unwrap() error { return e.Err }

// TraceResumeError is returned when the traced process could not be
// resumed.
type TraceResumeError struct {
	Pid int
	Err error
}

func (e *TraceResumeError) Error() string {
	return fmt.Sprintf("could not resume process %d: %v", e.Pid, e.Err)
}

func (e *TraceResumeError) Unwrap() error { return e.Err }

// ErrProcessExited indicates that the process has exited and contains both
// process id and exit status.
type ErrProcessExited struct {
	Pid    int
	Status int
}

func (pe ErrProcessExited) Error() string {
	return fmt.Sprintf("Process %d has exited with status %d", pe.Pid, pe.Status)
}

// NoBreakpointError is returned when trying to
// clear a breakpoint that does not exist.
type NoBreakpointError struct {
	Addr uint64
}

func (nbp NoBreakpointError) Error() string {
	return fmt.Sprintf("no breakpoint at %#x", nbp.Addr)
}
