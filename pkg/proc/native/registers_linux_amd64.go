package native

import (
	sys "golang.org/x/sys/unix"

	"github.com/minidbg/minidbg/pkg/proc"
)

func (dbp *Process) registers() (*sys.PtraceRegs, error) {
	if dbp.exited {
		return nil, dbp.exitedError()
	}
	var (
		regs sys.PtraceRegs
		err  error
	)
	dbp.execPtraceFunc(func() { err = sys.PtraceGetRegs(dbp.pid, &regs) })
	if err != nil {
		return nil, &proc.TraceSyscallError{Op: "getregs", Pid: dbp.pid, Err: err}
	}
	return &regs, nil
}

// PC returns the current program counter.
func (dbp *Process) PC() (uint64, error) {
	regs, err := dbp.registers()
	if err != nil {
		return 0, err
	}
	return regs.Rip, nil
}

// SetPC sets the program counter to pc.
func (dbp *Process) SetPC(pc uint64) error {
	regs, err := dbp.registers()
	if err != nil {
		return err
	}
	regs.Rip = pc
	dbp.execPtraceFunc(func() { err = sys.PtraceSetRegs(dbp.pid, regs) })
	if err != nil {
		return &proc.TraceSyscallError{Op: "setregs", Pid: dbp.pid, Err: err}
	}
	return nil
}
