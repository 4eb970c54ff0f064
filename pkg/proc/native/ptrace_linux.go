//go:build linux && amd64

package native

import (
	"encoding/binary"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/minidbg/minidbg/pkg/logflags"
	"github.com/minidbg/minidbg/pkg/proc"
)

// ptraceCont executes ptrace PTRACE_CONT
func ptraceCont(tid, sig int) error {
	return sys.PtraceCont(tid, sig)
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP
func ptraceSingleStep(pid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(pid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// PeekWord reads the word at addr.
func (dbp *Process) PeekWord(addr uint64) (uint64, error) {
	if dbp.exited {
		return 0, dbp.exitedError()
	}
	var err error
	buf := make([]byte, dbp.arch.PtrSize())
	dbp.execPtraceFunc(func() { _, err = sys.PtracePeekData(dbp.pid, uintptr(addr), buf) })
	if err != nil {
		return 0, &proc.TraceSyscallError{Op: "peekdata", Pid: dbp.pid, Err: err}
	}
	word := binary.LittleEndian.Uint64(buf)
	if logflags.Native() {
		dbp.log.Debugf("peek %#x -> %#016x", addr, word)
	}
	return word, nil
}

// PokeWord writes word at addr.
func (dbp *Process) PokeWord(addr, word uint64) error {
	if dbp.exited {
		return dbp.exitedError()
	}
	buf := make([]byte, dbp.arch.PtrSize())
	binary.LittleEndian.PutUint64(buf, word)
	var err error
	dbp.execPtraceFunc(func() { _, err = sys.PtracePokeData(dbp.pid, uintptr(addr), buf) })
	if err != nil {
		return &proc.TraceSyscallError{Op: "pokedata", Pid: dbp.pid, Err: err}
	}
	if logflags.Native() {
		dbp.log.Debugf("poke %#x <- %#016x", addr, word)
	}
	return nil
}

// Resume continues the process, delivering sig if it is not zero.
func (dbp *Process) Resume(sig syscall.Signal) error {
	if dbp.exited {
		return dbp.exitedError()
	}
	var err error
	dbp.execPtraceFunc(func() { err = ptraceCont(dbp.pid, int(sig)) })
	if err != nil {
		return &proc.TraceSyscallError{Op: "cont", Pid: dbp.pid, Err: err}
	}
	return nil
}

// SingleStep executes one instruction.
func (dbp *Process) SingleStep() error {
	if dbp.exited {
		return dbp.exitedError()
	}
	var err error
	dbp.execPtraceFunc(func() { err = ptraceSingleStep(dbp.pid, 0) })
	if err != nil {
		return &proc.TraceSyscallError{Op: "singlestep", Pid: dbp.pid, Err: err}
	}
	return nil
}
