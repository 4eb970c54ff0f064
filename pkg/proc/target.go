package proc

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/minidbg/minidbg/pkg/logflags"
)

var (
	errAlreadyStarted = errors.New("initial stop already consumed")
	errNotStarted     = errors.New("process has not reached its initial stop")
)

// StopReason describes the reason why the target process is stopped.
type StopReason uint8

const (
	StopUnknown StopReason = iota
	StopLaunched
	StopBreakpoint
	StopHardcodedBreakpoint // SIGTRAP that doesn't belong to a known breakpoint
	StopSignal
	StopSingleStep
	StopExited
	StopKilled
)

// String maps StopReason to string representation.
func (sr StopReason) String() string {
	switch sr {
	case StopUnknown:
		return "unknown"
	case StopLaunched:
		return "launched"
	case StopBreakpoint:
		return "breakpoint"
	case StopHardcodedBreakpoint:
		return "hardcoded breakpoint"
	case StopSignal:
		return "signal"
	case StopSingleStep:
		return "single step"
	case StopExited:
		return "exited"
	case StopKilled:
		return "killed"
	default:
		return ""
	}
}

// StopState describes the most recent stop notification of the target.
type StopState struct {
	Reason StopReason
	// Signal is the stop signal, or the terminating signal for StopKilled.
	Signal     syscall.Signal
	ExitStatus int
	PC         uint64
	// Breakpoint is set when Reason is StopBreakpoint.
	Breakpoint *Breakpoint
}

// Terminated returns true if the process no longer exists.
func (st *StopState) Terminated() bool {
	return st.Reason == StopExited || st.Reason == StopKilled
}

// Target represents the process being debugged: the backend process, the
// registry of breakpoints installed in it and its stop/resume state.
type Target struct {
	proc  ProcessInternal
	arch  Arch
	label string

	// breakpoints is owned by the target, every entry has Pid == proc.Pid().
	breakpoints BreakpointMap

	started       bool
	stop          *StopState
	exited        bool
	exitStatus    int
	pendingSignal syscall.Signal

	log logflags.Logger
}

// NewTarget returns a Target for p. label is the path originally launched.
// AwaitInitialStop must be called before anything else.
func NewTarget(p ProcessInternal, label string, arch Arch) *Target {
	return &Target{
		proc:        p,
		arch:        arch,
		label:       label,
		breakpoints: NewBreakpointMap(),
		log:         logflags.DebuggerLogger().WithField("pid", p.Pid()),
	}
}

// Pid returns the process ID of the target.
func (t *Target) Pid() int {
	return t.proc.Pid()
}

// Label returns the path the target was launched from.
func (t *Target) Label() string {
	return t.label
}

// Exited returns true if the process has exited or was killed.
func (t *Target) Exited() bool {
	return t.exited
}

// LastStop returns the most recent stop notification, nil before the
// initial stop.
func (t *Target) LastStop() *StopState {
	return t.stop
}

// Breakpoints returns the breakpoint registry.
func (t *Target) Breakpoints() *BreakpointMap {
	return &t.breakpoints
}

// FindBreakpoint returns the breakpoint registered at addr.
func (t *Target) FindBreakpoint(addr uint64) (*Breakpoint, bool) {
	bp, ok := t.breakpoints.M[addr]
	return bp, ok
}

// AwaitInitialStop blocks until the freshly launched process delivers the
// stop that follows its exec. It must be called exactly once.
func (t *Target) AwaitInitialStop() error {
	if t.started {
		return errAlreadyStarted
	}
	t.started = true

	ws, err := t.proc.Wait()
	if err != nil {
		return &TraceWaitError{Pid: t.Pid(), Err: err}
	}
	switch {
	case ws.Exited:
		t.setExited(ws.ExitStatus)
		return ErrProcessExited{Pid: t.Pid(), Status: ws.ExitStatus}
	case ws.Signaled:
		t.setExited(-1)
		return ErrProcessExited{Pid: t.Pid(), Status: -1}
	}
	t.stop = &StopState{Reason: StopLaunched, Signal: ws.Signal}
	t.log.Debugf("initial stop: %v", ws)
	return nil
}

// SetBreakpoint installs a breakpoint at addr and registers it.
//
// A breakpoint already registered at addr is disabled first, so its
// original word is back in memory before the new breakpoint reads it. If
// the new breakpoint can not be enabled the old one is restored and the
// registry is left unchanged.
func (t *Target) SetBreakpoint(addr uint64) (*Breakpoint, error) {
	if !t.started {
		return nil, errNotStarted
	}
	old, hasOld := t.breakpoints.M[addr]
	oldEnabled := hasOld && old.Enabled()
	if oldEnabled {
		if err := old.Disable(); err != nil {
			return nil, err
		}
	}

	bp := NewBreakpoint(t.proc, t.arch, t.Pid(), addr)
	if err := bp.Enable(); err != nil {
		if oldEnabled {
			if rerr := old.Enable(); rerr != nil {
				t.log.Errorf("could not restore breakpoint at %#x: %v", addr, rerr)
			}
		}
		return nil, err
	}
	t.breakpoints.M[addr] = bp
	t.log.Debugf("set breakpoint at %#x (replaced existing: %v)", addr, hasOld)
	return bp, nil
}

// ClearBreakpoint disables the breakpoint at addr and removes it from the
// registry.
func (t *Target) ClearBreakpoint(addr uint64) (*Breakpoint, error) {
	bp, ok := t.breakpoints.M[addr]
	if !ok {
		return nil, NoBreakpointError{Addr: addr}
	}
	if !t.exited {
		if err := bp.Disable(); err != nil {
			return nil, err
		}
	}
	delete(t.breakpoints.M, addr)
	t.log.Debugf("cleared breakpoint at %#x", addr)
	return bp, nil
}

// Continue resumes the process and blocks until it stops or terminates.
// A breakpoint installed at the current PC is stepped over first, and a
// signal that stopped the process earlier is delivered.
func (t *Target) Continue() (*StopState, error) {
	if err := t.checkCanProceed(); err != nil {
		return nil, err
	}
	atBreakpoint, err := t.atEnabledBreakpoint()
	if err != nil {
		return nil, err
	}
	if atBreakpoint {
		st, err := t.step()
		if err != nil || st.Reason != StopSingleStep {
			return st, err
		}
	}

	sig := t.pendingSignal
	if err := t.proc.Resume(sig); err != nil {
		return nil, &TraceResumeError{Pid: t.Pid(), Err: err}
	}
	t.pendingSignal = 0
	t.log.Debugf("resumed with signal %d", sig)
	return t.wait(false)
}

// StepInstruction executes a single instruction.
func (t *Target) StepInstruction() (*StopState, error) {
	if err := t.checkCanProceed(); err != nil {
		return nil, err
	}
	return t.step()
}

func (t *Target) checkCanProceed() error {
	if !t.started {
		return errNotStarted
	}
	if t.exited {
		return ErrProcessExited{Pid: t.Pid(), Status: t.exitStatus}
	}
	return nil
}

func (t *Target) atEnabledBreakpoint() (bool, error) {
	pc, err := t.proc.PC()
	if err != nil {
		return false, err
	}
	bp, ok := t.breakpoints.M[pc]
	return ok && bp.Enabled(), nil
}

// step single steps the process, lifting the breakpoint at the current PC
// for the duration of the step.
func (t *Target) step() (st *StopState, err error) {
	pc, err := t.proc.PC()
	if err != nil {
		return nil, err
	}
	if bp, ok := t.breakpoints.M[pc]; ok && bp.Enabled() {
		if err := bp.Disable(); err != nil {
			return nil, err
		}
		defer func() {
			if t.exited {
				return
			}
			if eerr := bp.Enable(); eerr != nil && err == nil {
				err = eerr
			}
		}()
	}
	if err := t.proc.SingleStep(); err != nil {
		return nil, &TraceResumeError{Pid: t.Pid(), Err: err}
	}
	return t.wait(true)
}

func (t *Target) wait(stepping bool) (*StopState, error) {
	ws, err := t.proc.Wait()
	if err != nil {
		return nil, &TraceWaitError{Pid: t.Pid(), Err: err}
	}
	if logflags.Debugger() {
		t.log.Debugf("wait: %v", ws)
	}

	st := &StopState{Signal: ws.Signal}
	switch {
	case ws.Exited:
		st.Reason = StopExited
		st.ExitStatus = ws.ExitStatus
		t.setExited(ws.ExitStatus)
	case ws.Signaled:
		st.Reason = StopKilled
		st.ExitStatus = -1
		t.setExited(-1)
	case ws.Stopped:
		pc, err := t.proc.PC()
		if err != nil {
			return nil, err
		}
		st.PC = pc
		switch {
		case ws.Signal != syscall.SIGTRAP:
			st.Reason = StopSignal
			t.pendingSignal = ws.Signal
		case stepping:
			st.Reason = StopSingleStep
		default:
			bp := t.breakpointHit(pc)
			if bp == nil {
				st.Reason = StopHardcodedBreakpoint
				break
			}
			if t.arch.BreakInstrMovesPC() {
				if err := t.proc.SetPC(bp.Addr); err != nil {
					return nil, err
				}
			}
			st.Reason = StopBreakpoint
			st.Breakpoint = bp
			st.PC = bp.Addr
		}
	default:
		return nil, &TraceWaitError{Pid: t.Pid(), Err: fmt.Errorf("unexpected wait status %v", ws)}
	}
	t.stop = st
	return st, nil
}

// breakpointHit returns the enabled breakpoint whose trap leaves the
// process stopped at pc.
func (t *Target) breakpointHit(pc uint64) *Breakpoint {
	addr := pc
	if t.arch.BreakInstrMovesPC() {
		addr -= uint64(t.arch.BreakpointSize())
	}
	if bp, ok := t.breakpoints.M[addr]; ok && bp.Enabled() {
		return bp
	}
	return nil
}

func (t *Target) setExited(status int) {
	t.exited = true
	t.exitStatus = status
	t.pendingSignal = 0
}
