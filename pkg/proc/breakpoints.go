package proc

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Breakpoint represents a software breakpoint. Stores information on the
// break point including the word of data that originally was stored at
// that address.
type Breakpoint struct {
	Pid  int    // Process the breakpoint belongs to
	Addr uint64 // Address of the patched instruction

	enabled bool
	// savedWord is only meaningful when saved is true, saved becomes true
	// after the first successful read in Enable.
	savedWord uint64
	saved     bool

	mem  Memory
	arch Arch
}

// NewBreakpoint returns a disabled breakpoint at addr in the process
// identified by pid, accessed through mem.
func NewBreakpoint(mem Memory, arch Arch, pid int, addr uint64) *Breakpoint {
	return &Breakpoint{
		Pid:  pid,
		Addr: addr,
		mem:  mem,
		arch: arch,
	}
}

func (bp *Breakpoint) String() string {
	state := "disabled"
	if bp.enabled {
		state = "enabled"
	}
	if !bp.saved {
		return fmt.Sprintf("Breakpoint at %#x, pid %d, %s", bp.Addr, bp.Pid, state)
	}
	return fmt.Sprintf("Breakpoint at %#x, pid %d, %s, original word %#016x", bp.Addr, bp.Pid, state, bp.savedWord)
}

// Enabled returns true if the trap opcode is currently installed.
func (bp *Breakpoint) Enabled() bool {
	return bp.enabled
}

// SavedWord returns the word read from Addr before it was patched. The
// second return value is false if no read has succeeded yet.
func (bp *Breakpoint) SavedWord() (uint64, bool) {
	return bp.savedWord, bp.saved
}

// Enable installs the trap opcode at Addr. Enabling an enabled breakpoint
// does nothing: reading the word again would capture the trap itself.
//
// If the write fails after a successful read the saved word is kept and
// the breakpoint stays disabled, so Enable can be retried.
func (bp *Breakpoint) Enable() error {
	if bp.enabled {
		return nil
	}
	word, err := bp.mem.PeekWord(bp.Addr)
	if err != nil {
		return &TraceAccessError{Op: "read", Pid: bp.Pid, Addr: bp.Addr, Err: err}
	}
	bp.savedWord = word
	bp.saved = true

	if err := bp.mem.PokeWord(bp.Addr, patchWord(word, bp.arch.BreakpointInstruction())); err != nil {
		return &TraceAccessError{Op: "write", Pid: bp.Pid, Addr: bp.Addr, Err: err}
	}
	bp.enabled = true
	return nil
}

// Disable puts the original instruction bytes back at Addr. Disabling a
// disabled breakpoint does nothing and never touches the target's memory.
//
// Only the bytes covered by the trap opcode are restored, the rest of the
// word is re-read so that traps of neighboring breakpoints stay in place.
func (bp *Breakpoint) Disable() error {
	if !bp.enabled {
		return nil
	}
	word, err := bp.mem.PeekWord(bp.Addr)
	if err != nil {
		return &TraceAccessError{Op: "read", Pid: bp.Pid, Addr: bp.Addr, Err: err}
	}
	if err := bp.mem.PokeWord(bp.Addr, patchWord(word, bp.originalBytes())); err != nil {
		return &TraceAccessError{Op: "write", Pid: bp.Pid, Addr: bp.Addr, Err: err}
	}
	bp.enabled = false
	return nil
}

// originalBytes returns the bytes of savedWord replaced by the trap opcode.
func (bp *Breakpoint) originalBytes() []byte {
	buf := make([]byte, bp.arch.PtrSize())
	binary.LittleEndian.PutUint64(buf, bp.savedWord)
	return buf[:bp.arch.BreakpointSize()]
}

// patchWord replaces the lowest order bytes of word with b. Words are
// little endian in memory, so the low order bytes are the ones at the
// breakpoint address.
func patchWord(word uint64, b []byte) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

// BreakpointMap represents an (address, breakpoint) map.
type BreakpointMap struct {
	M map[uint64]*Breakpoint
}

// NewBreakpointMap creates a new BreakpointMap.
func NewBreakpointMap() BreakpointMap {
	return BreakpointMap{
		M: make(map[uint64]*Breakpoint),
	}
}

// Sorted returns the breakpoints ordered by address.
func (bpmap *BreakpointMap) Sorted() []*Breakpoint {
	r := make([]*Breakpoint, 0, len(bpmap.M))
	for _, bp := range bpmap.M {
		r = append(r, bp)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].Addr < r[j].Addr })
	return r
}
