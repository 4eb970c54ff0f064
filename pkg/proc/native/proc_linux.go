//go:build linux && amd64

package native

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/minidbg/minidbg/pkg/proc"
)

const (
	personalityGetPersonality = 0xffffffff // argument to pass to personality syscall to get the current personality
	_ADDR_NO_RANDOMIZE        = 0x0040000  // ADDR_NO_RANDOMIZE linux constant
)

var errNoExecutable = errors.New("no executable specified")

var _ proc.ProcessInternal = (*Process)(nil)

// Launch creates and begins debugging a new process. First entry in
// `cmd` is the program to run, and then rest are the arguments
// to be supplied to that process. `wd` is working directory of the program.
// If the DisableASLR bit of `flags` is set address space randomization
// will be disabled.
//
// The child is stopped by the kernel right after its exec, Launch does not
// wait for that stop.
func Launch(cmd []string, wd string, flags proc.LaunchFlags) (*Process, error) {
	if len(cmd) == 0 {
		return nil, &proc.ProcessNotFoundError{Err: errNoExecutable}
	}
	var (
		process *exec.Cmd
		err     error
	)

	// The target is executed by path, never looked up in PATH.
	path, err := filepath.Abs(cmd[0])
	if err != nil {
		return nil, &proc.ProcessNotFoundError{Path: cmd[0], Err: err}
	}

	dbp := newProcess(0)
	dbp.execPtraceFunc(func() {
		if flags&proc.LaunchDisableASLR != 0 {
			oldPersonality, _, err := syscall.Syscall(sys.SYS_PERSONALITY, personalityGetPersonality, 0, 0)
			if err == syscall.Errno(0) {
				newPersonality := oldPersonality | _ADDR_NO_RANDOMIZE
				syscall.Syscall(sys.SYS_PERSONALITY, newPersonality, 0, 0)
				defer syscall.Syscall(sys.SYS_PERSONALITY, oldPersonality, 0, 0)
			}
		}

		process = exec.Command(path)
		process.Args = cmd
		process.Stdin = os.Stdin
		process.Stdout = os.Stdout
		process.Stderr = os.Stderr
		process.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
		if wd != "" {
			process.Dir = wd
		}
		err = process.Start()
	})
	if err != nil {
		dbp.postExit()
		return nil, launchError(cmd[0], err)
	}
	dbp.pid = process.Process.Pid
	dbp.log = dbp.log.WithField("pid", dbp.pid)
	dbp.log.Debugf("launched %s (aslr disabled: %v)", path, flags&proc.LaunchDisableASLR != 0)
	return dbp, nil
}

// launchError classifies an exec failure. Failures to resolve or execute
// the file itself are reported as ProcessNotFoundError.
func launchError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.EACCES) ||
		errors.Is(err, syscall.ENOEXEC) ||
		errors.Is(err, exec.ErrNotFound) {
		return &proc.ProcessNotFoundError{Path: path, Err: err}
	}
	return &proc.TraceSyscallError{Op: "launch", Err: err}
}

// Wait blocks until the process stops or terminates.
func (dbp *Process) Wait() (*proc.WaitStatus, error) {
	if dbp.exited {
		return nil, dbp.exitedError()
	}
	var status sys.WaitStatus
	for {
		_, err := sys.Wait4(dbp.pid, &status, sys.WALL, nil)
		if err == sys.EINTR {
			continue
		}
		if err != nil {
			return nil, &proc.TraceSyscallError{Op: "wait4", Pid: dbp.pid, Err: err}
		}
		break
	}

	ws := &proc.WaitStatus{}
	switch {
	case status.Exited():
		ws.Exited = true
		ws.ExitStatus = status.ExitStatus()
		dbp.exitStatus = ws.ExitStatus
		dbp.postExit()
	case status.Signaled():
		ws.Signaled = true
		ws.Signal = syscall.Signal(status.Signal())
		dbp.exitStatus = -1
		dbp.postExit()
	case status.Stopped():
		ws.Stopped = true
		ws.Signal = syscall.Signal(status.StopSignal())
	}
	dbp.log.Debugf("wait4: %v", ws)
	return ws, nil
}

// Kill kills the process and reaps it. Killing an exited process does
// nothing.
func (dbp *Process) Kill() error {
	if dbp.exited {
		return nil
	}
	if err := sys.Kill(dbp.pid, sys.SIGKILL); err != nil && err != sys.ESRCH {
		return &proc.TraceSyscallError{Op: "kill", Pid: dbp.pid, Err: err}
	}
	for !dbp.exited {
		if _, err := dbp.Wait(); err != nil {
			return err
		}
	}
	return nil
}
