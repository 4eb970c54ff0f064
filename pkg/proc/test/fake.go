package test

import (
	"encoding/binary"
	"errors"
	"syscall"

	"github.com/minidbg/minidbg/pkg/proc"
)

var errNoMoreStops = errors.New("fake process: no more stops scripted")

// FakeStop is a scripted stop notification: Wait returns Status and moves
// the program counter to PC.
type FakeStop struct {
	Status proc.WaitStatus
	PC     uint64
}

// Trap returns a SIGTRAP stop at pc.
func Trap(pc uint64) FakeStop {
	return FakeStop{Status: proc.WaitStatus{Stopped: true, Signal: syscall.SIGTRAP}, PC: pc}
}

// Signal returns a stop caused by sig at pc.
func Signal(sig syscall.Signal, pc uint64) FakeStop {
	return FakeStop{Status: proc.WaitStatus{Stopped: true, Signal: sig}, PC: pc}
}

// Exit returns an exit notification with the given status.
func Exit(status int) FakeStop {
	return FakeStop{Status: proc.WaitStatus{Exited: true, ExitStatus: status}}
}

// Killed returns a notification of termination by sig.
func Killed(sig syscall.Signal) FakeStop {
	return FakeStop{Status: proc.WaitStatus{Signaled: true, Signal: sig}}
}

// FakeProcess is a scripted proc.ProcessInternal. Memory is byte
// addressed, so words at nearby addresses overlap like they do in a real
// process. Accessing a word with a byte that was never mapped fails with
// EIO like reading unmapped memory of a traced process does.
type FakeProcess struct {
	PidValue int
	PCValue  uint64
	Stops    []FakeStop

	mem map[uint64]byte

	ReadErr   error
	WriteErr  error
	// WriteErrs is consumed by successive writes before WriteErr applies,
	// nil entries succeed.
	WriteErrs []error
	ResumeErr error
	StepErr   error
	WaitErr   error
	RegsErr   error

	Peeks   int
	Pokes   int
	Resumes []syscall.Signal
	// StepWords records the word at the program counter when each single
	// step was requested.
	StepWords []uint64
}

// NewFakeProcess returns a fake process whose first Wait reports the
// initial stop at entry.
func NewFakeProcess(pid int, entry uint64, words map[uint64]uint64, stops ...FakeStop) *FakeProcess {
	p := &FakeProcess{
		PidValue: pid,
		Stops:    append([]FakeStop{Trap(entry)}, stops...),
	}
	for addr, w := range words {
		p.SetWord(addr, w)
	}
	return p
}

// SetWord maps the eight bytes at addr and stores w there.
func (p *FakeProcess) SetWord(addr, w uint64) {
	if p.mem == nil {
		p.mem = make(map[uint64]byte)
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], w)
	for i, b := range buf {
		p.mem[addr+uint64(i)] = b
	}
}

// Word returns the word at addr, unmapped bytes read as zero.
func (p *FakeProcess) Word(addr uint64) uint64 {
	var buf [8]byte
	for i := range buf {
		buf[i] = p.mem[addr+uint64(i)]
	}
	return binary.LittleEndian.Uint64(buf[:])
}

func (p *FakeProcess) mapped(addr uint64) bool {
	for i := uint64(0); i < 8; i++ {
		if _, ok := p.mem[addr+i]; !ok {
			return false
		}
	}
	return true
}

func (p *FakeProcess) Pid() int { return p.PidValue }

func (p *FakeProcess) PeekWord(addr uint64) (uint64, error) {
	p.Peeks++
	if p.ReadErr != nil {
		return 0, p.ReadErr
	}
	if !p.mapped(addr) {
		return 0, syscall.EIO
	}
	return p.Word(addr), nil
}

func (p *FakeProcess) PokeWord(addr, word uint64) error {
	p.Pokes++
	if len(p.WriteErrs) > 0 {
		err := p.WriteErrs[0]
		p.WriteErrs = p.WriteErrs[1:]
		if err != nil {
			return err
		}
	} else if p.WriteErr != nil {
		return p.WriteErr
	}
	if !p.mapped(addr) {
		return syscall.EIO
	}
	p.SetWord(addr, word)
	return nil
}

func (p *FakeProcess) Resume(sig syscall.Signal) error {
	if p.ResumeErr != nil {
		return p.ResumeErr
	}
	p.Resumes = append(p.Resumes, sig)
	return nil
}

func (p *FakeProcess) SingleStep() error {
	if p.StepErr != nil {
		return p.StepErr
	}
	p.StepWords = append(p.StepWords, p.Word(p.PCValue))
	return nil
}

func (p *FakeProcess) Wait() (*proc.WaitStatus, error) {
	if p.WaitErr != nil {
		return nil, p.WaitErr
	}
	if len(p.Stops) == 0 {
		return nil, errNoMoreStops
	}
	stop := p.Stops[0]
	p.Stops = p.Stops[1:]
	if stop.Status.Stopped {
		p.PCValue = stop.PC
	}
	return &stop.Status, nil
}

func (p *FakeProcess) PC() (uint64, error) {
	if p.RegsErr != nil {
		return 0, p.RegsErr
	}
	return p.PCValue, nil
}

func (p *FakeProcess) SetPC(pc uint64) error {
	if p.RegsErr != nil {
		return p.RegsErr
	}
	p.PCValue = pc
	return nil
}
