// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"

	"github.com/minidbg/minidbg/pkg/locspec"
	"github.com/minidbg/minidbg/pkg/proc"
)

type cmdfunc func(t *Term, args []string) error

type command struct {
	aliases        []string
	builtinAliases []string
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the minidbg terminal.
type Commands struct {
	cmds []command
	// names indexes every alias for completion.
	names *trie.Trie
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"break"}, cmdFn: breakpoint, helpMsg: `Sets a breakpoint.

	break <address>

The address is a hexadecimal number, the 0x prefix is optional:

	break 0x401136
	break 401136

Setting a breakpoint where one already exists replaces it.`},
		{aliases: []string{"clear"}, cmdFn: clearBreakpoint, helpMsg: `Deletes breakpoint.

	clear <address>

The original instruction at the address is restored.`},
		{aliases: []string{"breakpoints"}, cmdFn: breakpoints, helpMsg: "Print out info for active breakpoints."},
		{aliases: []string{"continue"}, cmdFn: cont, helpMsg: `Run until breakpoint or program termination.

A signal that stopped the program is delivered to it when it is continued.`},
		{aliases: []string{"stepi"}, cmdFn: stepInstruction, helpMsg: "Single step a single cpu instruction."},
		{aliases: []string{"exit"}, cmdFn: exitCommand, helpMsg: `Exit the debugger.

	exit

Ends the session. The target is not resumed and its breakpoints are left
in place.

When the debugger shuts down afterwards it kills the process it launched.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	c.index()
	return c
}

func (c *Commands) index() {
	c.names = trie.New()
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			c.names.Add(alias, nil)
		}
	}
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will return a function reporting
// UnknownCommandError. An empty command does nothing.
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return func(t *Term, args []string) error {
		return UnknownCommandError{Name: cmdstr}
	}
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	args, err := splitCommandLine(cmdstr)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nullCommand(t, nil)
	}
	t.log.Debugf("dispatch %q", cmdstr)
	return c.Find(args[0])(t, args[1:])
}

// splitCommandLine splits a command line into whitespace separated words.
// Quotes are honored, backticks and pipes are rejected.
func splitCommandLine(cmdstr string) ([]string, error) {
	if strings.TrimSpace(cmdstr) == "" {
		return nil, nil
	}
	v, err := argv.Argv(cmdstr,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal command line '%s'", cmdstr)
	}
	return v[0], nil
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
	c.index()
}

// Complete returns the command names starting with line.
func (c *Commands) Complete(line string) []string {
	if strings.ContainsAny(line, " \t") {
		return nil
	}
	r := c.names.PrefixSearch(strings.ToLower(line))
	sort.Strings(r)
	return r
}

// UnknownCommandError is returned when the command name isn't the name or
// alias of any command.
type UnknownCommandError struct {
	Name string
}

func (e UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// ExitRequestError is returned when the user
// exits minidbg.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

var errNotEnoughArgs = errors.New("not enough arguments")
var errTooManyArgs = errors.New("too many arguments")

func nullCommand(t *Term, args []string) error {
	return nil
}

func (c *Commands) help(t *Term, args []string) error {
	switch len(args) {
	case 0:
	case 1:
		for _, cmd := range c.cmds {
			if cmd.match(args[0]) {
				fmt.Fprintln(t.stdout, cmd.helpMsg)
				return nil
			}
		}
		return UnknownCommandError{Name: args[0]}
	default:
		return errTooManyArgs
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, '-', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func parseAddressArg(args []string) (uint64, error) {
	switch {
	case len(args) == 0:
		return 0, errNotEnoughArgs
	case len(args) > 1:
		return 0, errTooManyArgs
	}
	return locspec.ParseAddress(args[0])
}

func breakpoint(t *Term, args []string) error {
	addr, err := parseAddressArg(args)
	if err != nil {
		return err
	}
	bp, err := t.target.SetBreakpoint(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Breakpoint set: %s\n", bp)
	return nil
}

func clearBreakpoint(t *Term, args []string) error {
	addr, err := parseAddressArg(args)
	if err != nil {
		return err
	}
	bp, err := t.target.ClearBreakpoint(addr)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Breakpoint cleared at %#x\n", bp.Addr)
	return nil
}

func breakpoints(t *Term, args []string) error {
	bps := t.target.Breakpoints().Sorted()
	if len(bps) == 0 {
		fmt.Fprintln(t.stdout, "No breakpoints set")
		return nil
	}
	for _, bp := range bps {
		fmt.Fprintln(t.stdout, bp)
	}
	return nil
}

func cont(t *Term, args []string) error {
	st, err := t.target.Continue()
	if err != nil {
		return err
	}
	t.printStop(st)
	return nil
}

func stepInstruction(t *Term, args []string) error {
	st, err := t.target.StepInstruction()
	if err != nil {
		return err
	}
	t.printStop(st)
	return nil
}

func exitCommand(t *Term, args []string) error {
	return ExitRequestError{}
}

func (t *Term) printStop(st *proc.StopState) {
	pid := t.target.Pid()
	switch st.Reason {
	case proc.StopBreakpoint:
		fmt.Fprintf(t.stdout, "Process %d stopped at breakpoint %#x\n", pid, st.PC)
	case proc.StopHardcodedBreakpoint:
		fmt.Fprintf(t.stdout, "Process %d stopped by SIGTRAP at %#x\n", pid, st.PC)
	case proc.StopSignal:
		fmt.Fprintf(t.stdout, "Process %d stopped by signal %v at %#x\n", pid, st.Signal, st.PC)
	case proc.StopSingleStep:
		fmt.Fprintf(t.stdout, "Process %d stopped at %#x\n", pid, st.PC)
	case proc.StopExited:
		fmt.Fprintf(t.stdout, "Process %d has exited with status %d\n", pid, st.ExitStatus)
	case proc.StopKilled:
		fmt.Fprintf(t.stdout, "Process %d killed by signal %v\n", pid, st.Signal)
	default:
		fmt.Fprintf(t.stdout, "Process %d stopped (%v)\n", pid, st.Reason)
	}
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
