// Package proc is a low-level package that provides methods to manipulate
// the process we are debugging.
//
// proc implements the core breakpoint engine and the stop/resume control
// loop on top of a ProcessInternal backend. Use native.Launch to obtain a
// backend for a real process.
package proc
