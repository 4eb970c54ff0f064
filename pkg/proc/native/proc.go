package native

import (
	"runtime"

	"github.com/minidbg/minidbg/pkg/logflags"
	"github.com/minidbg/minidbg/pkg/proc"
)

// Process represents all of the information the debugger
// is holding onto regarding the process we are debugging.
type Process struct {
	pid  int // Process Pid
	arch proc.Arch

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}

	exited     bool
	exitStatus int

	log logflags.Logger
}

// newProcess returns an initialized Process struct. Before returning,
// it will also launch a goroutine in order to handle ptrace(2)
// functions. For more information, see the documentation on
// `handlePtraceFuncs`.
func newProcess(pid int) *Process {
	dbp := &Process{
		pid:            pid,
		arch:           proc.AMD64Arch(),
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
		log:            logflags.NativeLogger(),
	}
	go dbp.handlePtraceFuncs()
	return dbp
}

// Pid returns the process ID.
func (dbp *Process) Pid() int {
	return dbp.pid
}

// Arch returns the architecture of the process.
func (dbp *Process) Arch() proc.Arch {
	return dbp.arch
}

// Exited returns true once a wait reported the process as gone.
func (dbp *Process) Exited() bool {
	return dbp.exited
}

func (dbp *Process) exitedError() error {
	return proc.ErrProcessExited{Pid: dbp.pid, Status: dbp.exitStatus}
}

func (dbp *Process) handlePtraceFuncs() {
	// We must ensure here that we are running on the same thread during
	// while invoking the ptrace(2) syscall. This is due to the fact that ptrace(2) expects
	// all commands after PTRACE_TRACEME to come from the thread that forked the tracee.
	runtime.LockOSThread()

	for fn := range dbp.ptraceChan {
		fn()
		dbp.ptraceDoneChan <- nil
	}
}

func (dbp *Process) execPtraceFunc(fn func()) {
	dbp.ptraceChan <- fn
	<-dbp.ptraceDoneChan
}

// postExit stops the ptrace goroutine. Every method checks exited before
// calling execPtraceFunc.
func (dbp *Process) postExit() {
	if dbp.ptraceChan == nil {
		return
	}
	dbp.exited = true
	close(dbp.ptraceChan)
	dbp.ptraceChan = nil
}
