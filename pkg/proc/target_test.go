package proc_test

import (
	"errors"
	"syscall"
	"testing"

	"github.com/minidbg/minidbg/pkg/proc"
	protest "github.com/minidbg/minidbg/pkg/proc/test"
)

const entry = 0x401020

func startTarget(t *testing.T, p *protest.FakeProcess) *proc.Target {
	t.Helper()
	tgt := proc.NewTarget(p, "/bin/fixture", proc.AMD64Arch())
	if err := tgt.AwaitInitialStop(); err != nil {
		t.Fatalf("AwaitInitialStop: %v", err)
	}
	if st := tgt.LastStop(); st == nil || st.Reason != proc.StopLaunched {
		t.Fatalf("unexpected initial stop %#v", st)
	}
	return tgt
}

func assertStop(t *testing.T, st *proc.StopState, err error, reason proc.StopReason) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Reason != reason {
		t.Fatalf("stop reason %v, expected %v", st.Reason, reason)
	}
}

func TestAwaitInitialStopOnlyOnce(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil)
	tgt := startTarget(t, p)
	if err := tgt.AwaitInitialStop(); err == nil {
		t.Fatal("second AwaitInitialStop succeeded")
	}
}

func TestAwaitInitialStopExited(t *testing.T) {
	p := &protest.FakeProcess{PidValue: 7, Stops: []protest.FakeStop{protest.Exit(3)}}
	tgt := proc.NewTarget(p, "/bin/fixture", proc.AMD64Arch())
	err := tgt.AwaitInitialStop()
	var perr proc.ErrProcessExited
	if !errors.As(err, &perr) || perr.Status != 3 || perr.Pid != 7 {
		t.Fatalf("expected ErrProcessExited, got %v", err)
	}
	if !tgt.Exited() {
		t.Fatal("target not marked as exited")
	}
}

func TestAwaitInitialStopWaitError(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil)
	p.WaitErr = syscall.ECHILD
	tgt := proc.NewTarget(p, "/bin/fixture", proc.AMD64Arch())
	err := tgt.AwaitInitialStop()
	var werr *proc.TraceWaitError
	if !errors.As(err, &werr) || !errors.Is(err, syscall.ECHILD) {
		t.Fatalf("expected TraceWaitError wrapping ECHILD, got %v", err)
	}
}

func TestSetBreakpointBeforeInitialStop(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, map[uint64]uint64{bpAddr: origWord})
	tgt := proc.NewTarget(p, "/bin/fixture", proc.AMD64Arch())
	if _, err := tgt.SetBreakpoint(bpAddr); err == nil {
		t.Fatal("breakpoint set before the initial stop")
	}
	if p.Pokes != 0 {
		t.Fatal("memory written before the initial stop")
	}
}

func TestSetBreakpointReplacesExisting(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, map[uint64]uint64{bpAddr: origWord})
	tgt := startTarget(t, p)

	first, err := tgt.SetBreakpoint(bpAddr)
	if err != nil {
		t.Fatal(err)
	}
	second, err := tgt.SetBreakpoint(bpAddr)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("breakpoint not replaced")
	}
	if first.Enabled() {
		t.Fatal("replaced breakpoint still enabled")
	}
	if w, _ := second.SavedWord(); w != origWord {
		t.Fatalf("replacement saved the patched word %#x", w)
	}
	if n := len(tgt.Breakpoints().M); n != 1 {
		t.Fatalf("%d breakpoints registered", n)
	}
	if bp, _ := tgt.FindBreakpoint(bpAddr); bp != second {
		t.Fatal("registry does not hold the replacement")
	}

	if _, err := tgt.ClearBreakpoint(bpAddr); err != nil {
		t.Fatal(err)
	}
	if w := p.Word(bpAddr); w != origWord {
		t.Fatalf("original word not restored after replace and clear: %#x", w)
	}
}

func TestSetBreakpointReplaceFailureKeepsOld(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, map[uint64]uint64{bpAddr: origWord})
	tgt := startTarget(t, p)
	old, err := tgt.SetBreakpoint(bpAddr)
	if err != nil {
		t.Fatal(err)
	}

	// disable of the old breakpoint succeeds, enable of the new one fails
	p.WriteErrs = []error{nil, syscall.EPERM, nil}
	if _, err := tgt.SetBreakpoint(bpAddr); !errors.Is(err, syscall.EPERM) {
		t.Fatalf("expected EPERM, got %v", err)
	}
	if bp, _ := tgt.FindBreakpoint(bpAddr); bp != old {
		t.Fatal("registry changed by failed replacement")
	}
	if !old.Enabled() {
		t.Fatal("old breakpoint not restored")
	}
	if w := p.Word(bpAddr); w != 0x11223344556677CC {
		t.Fatalf("trap not reinstalled: %#x", w)
	}
}

func TestSetBreakpointUnmapped(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil)
	tgt := startTarget(t, p)
	_, err := tgt.SetBreakpoint(0xdead)
	var aerr *proc.TraceAccessError
	if !errors.As(err, &aerr) || aerr.Op != "read" {
		t.Fatalf("expected read TraceAccessError, got %v", err)
	}
	if len(tgt.Breakpoints().M) != 0 {
		t.Fatal("failed breakpoint registered")
	}
}

func TestClearBreakpointMissing(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil)
	tgt := startTarget(t, p)
	_, err := tgt.ClearBreakpoint(0x10)
	var nbp proc.NoBreakpointError
	if !errors.As(err, &nbp) || nbp.Addr != 0x10 {
		t.Fatalf("expected NoBreakpointError, got %v", err)
	}
}

func TestContinueHitsBreakpoint(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, map[uint64]uint64{bpAddr: origWord},
		protest.Trap(bpAddr+1))
	tgt := startTarget(t, p)
	bp, err := tgt.SetBreakpoint(bpAddr)
	if err != nil {
		t.Fatal(err)
	}

	st, err := tgt.Continue()
	assertStop(t, st, err, proc.StopBreakpoint)
	if st.Breakpoint != bp {
		t.Fatal("stop does not reference the breakpoint")
	}
	if st.PC != bpAddr || p.PCValue != bpAddr {
		t.Fatalf("pc not rewound: stop %#x, registers %#x", st.PC, p.PCValue)
	}
	if len(p.Resumes) != 1 || p.Resumes[0] != 0 {
		t.Fatalf("unexpected resumes %v", p.Resumes)
	}
}

func TestContinueStepsOverBreakpoint(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, map[uint64]uint64{bpAddr: origWord},
		protest.Trap(bpAddr+1),
		protest.Trap(bpAddr+4),
		protest.Trap(bpAddr+1),
		protest.Trap(bpAddr+4),
		protest.Exit(42))
	tgt := startTarget(t, p)
	if _, err := tgt.SetBreakpoint(bpAddr); err != nil {
		t.Fatal(err)
	}

	st, err := tgt.Continue()
	assertStop(t, st, err, proc.StopBreakpoint)
	st, err = tgt.Continue()
	assertStop(t, st, err, proc.StopBreakpoint)
	st, err = tgt.Continue()
	assertStop(t, st, err, proc.StopExited)
	if st.ExitStatus != 42 {
		t.Fatalf("exit status %d", st.ExitStatus)
	}

	if len(p.StepWords) != 2 {
		t.Fatalf("%d single steps, expected 2", len(p.StepWords))
	}
	for i, w := range p.StepWords {
		if w != origWord {
			t.Errorf("step %d executed over patched word %#x", i, w)
		}
	}
	if !tgt.Exited() {
		t.Fatal("target not marked as exited")
	}
}

func TestContinueReinstallsBreakpointAfterStep(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, map[uint64]uint64{bpAddr: origWord},
		protest.Trap(bpAddr+1),
		protest.Trap(bpAddr+4),
		protest.Signal(syscall.SIGINT, 0x401200))
	tgt := startTarget(t, p)
	bp, err := tgt.SetBreakpoint(bpAddr)
	if err != nil {
		t.Fatal(err)
	}
	st, err := tgt.Continue()
	assertStop(t, st, err, proc.StopBreakpoint)
	st, err = tgt.Continue()
	assertStop(t, st, err, proc.StopSignal)
	if !bp.Enabled() || p.Word(bpAddr) != 0x11223344556677CC {
		t.Fatal("breakpoint not reinstalled after stepping over it")
	}
}

func TestContinueStepOverKeepsNeighborTrap(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, map[uint64]uint64{bpAddr: origWord, bpAddr + 8: 0},
		protest.Trap(bpAddr+1),
		protest.Trap(bpAddr+1),
		protest.Trap(bpAddr+2))
	tgt := startTarget(t, p)
	if _, err := tgt.SetBreakpoint(bpAddr); err != nil {
		t.Fatal(err)
	}
	next, err := tgt.SetBreakpoint(bpAddr + 1)
	if err != nil {
		t.Fatal(err)
	}

	st, err := tgt.Continue()
	assertStop(t, st, err, proc.StopBreakpoint)
	if st.PC != bpAddr {
		t.Fatalf("first stop at %#x", st.PC)
	}
	st, err = tgt.Continue()
	assertStop(t, st, err, proc.StopBreakpoint)
	if st.PC != bpAddr+1 || st.Breakpoint != next {
		t.Fatalf("neighboring breakpoint not hit, stopped at %#x", st.PC)
	}
	if len(p.StepWords) != 1 || p.StepWords[0] != 0x112233445566CC88 {
		t.Fatalf("unexpected memory during step over: %#x", p.StepWords)
	}
	if w := p.Word(bpAddr); w != 0x112233445566CCCC {
		t.Fatalf("traps not reinstalled: %#x", w)
	}
}

func TestClearNeighborBreakpoints(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, map[uint64]uint64{bpAddr: origWord, bpAddr + 8: 0})
	tgt := startTarget(t, p)
	for _, addr := range []uint64{bpAddr + 1, bpAddr} {
		if _, err := tgt.SetBreakpoint(addr); err != nil {
			t.Fatal(err)
		}
	}
	for _, addr := range []uint64{bpAddr + 1, bpAddr} {
		if _, err := tgt.ClearBreakpoint(addr); err != nil {
			t.Fatal(err)
		}
	}
	if w := p.Word(bpAddr); w != origWord {
		t.Fatalf("stale trap left in memory: %#x", w)
	}
}

func TestContinueForwardsSignal(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil,
		protest.Signal(syscall.SIGUSR1, 0x401100),
		protest.Exit(7))
	tgt := startTarget(t, p)

	st, err := tgt.Continue()
	assertStop(t, st, err, proc.StopSignal)
	if st.Signal != syscall.SIGUSR1 {
		t.Fatalf("stop signal %v", st.Signal)
	}
	st, err = tgt.Continue()
	assertStop(t, st, err, proc.StopExited)
	if len(p.Resumes) != 2 || p.Resumes[0] != 0 || p.Resumes[1] != syscall.SIGUSR1 {
		t.Fatalf("signal not forwarded: %v", p.Resumes)
	}
}

func TestContinueUnknownTrap(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil, protest.Trap(0x401300))
	tgt := startTarget(t, p)
	st, err := tgt.Continue()
	assertStop(t, st, err, proc.StopHardcodedBreakpoint)
	if p.PCValue != 0x401300 {
		t.Fatalf("pc changed to %#x", p.PCValue)
	}
}

func TestContinueKilled(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil, protest.Killed(syscall.SIGKILL))
	tgt := startTarget(t, p)
	st, err := tgt.Continue()
	assertStop(t, st, err, proc.StopKilled)
	if st.Signal != syscall.SIGKILL || !st.Terminated() {
		t.Fatalf("unexpected stop %#v", st)
	}
}

func TestContinueAfterExit(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, map[uint64]uint64{bpAddr: origWord}, protest.Exit(0))
	tgt := startTarget(t, p)
	if _, err := tgt.SetBreakpoint(bpAddr); err != nil {
		t.Fatal(err)
	}
	st, err := tgt.Continue()
	assertStop(t, st, err, proc.StopExited)

	_, err = tgt.Continue()
	var perr proc.ErrProcessExited
	if !errors.As(err, &perr) || perr.Pid != 7 || perr.Status != 0 {
		t.Fatalf("expected ErrProcessExited, got %v", err)
	}
	if _, err := tgt.StepInstruction(); !errors.As(err, &perr) {
		t.Fatalf("expected ErrProcessExited, got %v", err)
	}
	if len(p.Resumes) != 1 {
		t.Fatalf("exited process resumed: %v", p.Resumes)
	}

	pokes := p.Pokes
	if _, err := tgt.ClearBreakpoint(bpAddr); err != nil {
		t.Fatal(err)
	}
	if p.Pokes != pokes {
		t.Fatal("memory of exited process written")
	}
}

func TestContinueResumeError(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil)
	tgt := startTarget(t, p)
	p.ResumeErr = syscall.ESRCH
	_, err := tgt.Continue()
	var rerr *proc.TraceResumeError
	if !errors.As(err, &rerr) || !errors.Is(err, syscall.ESRCH) {
		t.Fatalf("expected TraceResumeError wrapping ESRCH, got %v", err)
	}
}

func TestContinueWaitError(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil)
	tgt := startTarget(t, p)
	p.WaitErr = syscall.EINVAL
	_, err := tgt.Continue()
	var werr *proc.TraceWaitError
	if !errors.As(err, &werr) || werr.Pid != 7 {
		t.Fatalf("expected TraceWaitError, got %v", err)
	}
}

func TestStepInstruction(t *testing.T) {
	p := protest.NewFakeProcess(7, entry, nil, protest.Trap(entry+3))
	tgt := startTarget(t, p)
	st, err := tgt.StepInstruction()
	assertStop(t, st, err, proc.StopSingleStep)
	if st.PC != entry+3 {
		t.Fatalf("pc %#x", st.PC)
	}
	if len(p.Resumes) != 0 || len(p.StepWords) != 1 {
		t.Fatalf("expected a single step only: resumes %v steps %d", p.Resumes, len(p.StepWords))
	}
}

func TestStopReasonString(t *testing.T) {
	for reason, want := range map[proc.StopReason]string{
		proc.StopBreakpoint: "breakpoint",
		proc.StopExited:     "exited",
		proc.StopSignal:     "signal",
	} {
		if got := reason.String(); got != want {
			t.Errorf("%d: got %q expected %q", reason, got, want)
		}
	}
}
