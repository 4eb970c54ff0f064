package proc

// Arch defines an interface for representing a
// CPU architecture.
type Arch interface {
	// PtrSize returns the size of a pointer, which is also the size of the
	// words moved by PeekWord and PokeWord.
	PtrSize() int
	// BreakpointInstruction returns the software trap opcode.
	BreakpointInstruction() []byte
	// BreakpointSize returns the size of the software trap opcode.
	BreakpointSize() int
	// BreakInstrMovesPC is true if hitting a breakpoint instruction leaves
	// the PC after the instruction rather than on it.
	BreakInstrMovesPC() bool
}

// AMD64 represents the AMD64 CPU architecture.
type AMD64 struct{}

var amd64BreakInstruction = []byte{0xCC}

// AMD64Arch returns an initialized AMD64
// struct.
func AMD64Arch() *AMD64 {
	return &AMD64{}
}

// PtrSize returns the size of a pointer
// on this architecture.
func (a *AMD64) PtrSize() int {
	return 8
}

// BreakpointInstruction returns the Breakpoint
// instruction for this architecture.
func (a *AMD64) BreakpointInstruction() []byte {
	return amd64BreakInstruction
}

// BreakpointSize returns the size of the
// breakpoint instruction on this architecture.
func (a *AMD64) BreakpointSize() int {
	return len(amd64BreakInstruction)
}

// BreakInstrMovesPC returns true: INT 3 leaves the PC on the next byte.
func (a *AMD64) BreakInstrMovesPC() bool {
	return true
}
