package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-delve/liner"
	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/minidbg/minidbg/pkg/config"
	"github.com/minidbg/minidbg/pkg/logflags"
	"github.com/minidbg/minidbg/pkg/proc"
)

const (
	historyFile                 string = ".minidbg_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const ansiRed = 31

type sessionState uint8

const (
	stateAwaitingInitialStop sessionState = iota
	stateReady
	stateTerminated
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingInitialStop:
		return "awaiting initial stop"
	case stateReady:
		return "ready"
	case stateTerminated:
		return "terminated"
	}
	return "unknown"
}

// lineReader is the part of *liner.State used by Term.
type lineReader interface {
	Prompt(string) (string, error)
	AppendHistory(string)
	ReadHistory(io.Reader) (int, error)
	WriteHistory(io.Writer) (int, error)
	SetCompleter(liner.Completer)
	Close() error
}

// Term represents the terminal running minidbg.
type Term struct {
	target   *proc.Target
	conf     *config.Config
	prompt   string
	line     lineReader
	cmds     *Commands
	dumb     bool
	stdout   io.Writer
	stderr   io.Writer
	InitFile string

	// historyFile is empty when history can't be persisted.
	historyFile string
	state       sessionState
	log         logflags.Logger
}

// New returns a new Term.
func New(target *proc.Target, conf *config.Config) *Term {
	var stderr io.Writer = os.Stderr
	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stderr.Fd())
	if !dumb {
		stderr = colorable.NewColorableStderr()
	}
	t := newTerm(target, conf, liner.NewLiner(), os.Stdout, stderr)
	t.dumb = dumb

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		t.log.Warnf("unable to locate history file: %v", err)
	} else {
		t.historyFile = fullHistoryFile
	}
	return t
}

func newTerm(target *proc.Target, conf *config.Config, line lineReader, stdout, stderr io.Writer) *Term {
	cmds := DebugCommands()
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	if conf == nil {
		conf = &config.Config{}
	}

	return &Term{
		target: target,
		conf:   conf,
		prompt: "minidbg> ",
		line:   line,
		cmds:   cmds,
		dumb:   true,
		stdout: stdout,
		stderr: stderr,
		state:  stateAwaitingInitialStop,
		log:    logflags.DebuggerLogger().WithField("session", uuid.New().String()),
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// sigintGuard swallows SIGINT until ch is closed. The target shares the
// terminal, it receives the same signal, stops, and the next continue
// delivers it.
func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		t.log.Debugf("received SIGINT")
	}
}

// Run waits for the initial stop of the target and then reads and
// executes commands until exit or end of input.
func (t *Term) Run() (int, error) {
	defer t.Close()

	if err := t.target.AwaitInitialStop(); err != nil {
		t.state = stateTerminated
		return 1, err
	}
	t.state = stateReady
	t.log.Debugf("%s (pid %d) is %v", t.target.Label(), t.target.Pid(), t.state)

	ch := make(chan os.Signal, 1)
	guardDone := make(chan struct{})
	signal.Notify(ch, syscall.SIGINT)
	go func() {
		t.sigintGuard(ch)
		close(guardDone)
	}()
	defer func() {
		signal.Stop(ch)
		close(ch)
		<-guardDone
	}()

	t.line.SetCompleter(t.cmds.Complete)
	t.loadHistory()
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(t.stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			if err == liner.ErrPromptAborted {
				continue
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			t.printError(err)
		}
	}
}

func (t *Term) printError(err error) {
	var exited proc.ErrProcessExited
	if errors.As(err, &exited) {
		fmt.Fprintln(t.stderr, err.Error())
		return
	}
	prefix := "Command failed:"
	if !t.dumb {
		prefix = fmt.Sprintf(terminalHighlightEscapeCode, ansiRed) + prefix + terminalResetEscapeCode
	}
	fmt.Fprintf(t.stderr, "%s %s\n", prefix, err)
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) loadHistory() {
	if t.historyFile == "" {
		return
	}
	f, err := os.Open(t.historyFile)
	if err != nil {
		f, err = os.Create(t.historyFile)
		if err != nil {
			fmt.Fprintf(t.stderr, "Unable to open history file: %v. History will not be saved for this session.\n", err)
			t.historyFile = ""
			return
		}
	}
	t.line.ReadHistory(f)
	f.Close()
}

func (t *Term) handleExit() (int, error) {
	t.state = stateTerminated
	if t.historyFile != "" {
		if f, err := os.OpenFile(t.historyFile, os.O_RDWR|os.O_TRUNC, 0666); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Fprintln(t.stderr, "readline history error:", err)
			}
			f.Close()
		}
	}
	t.log.Debugf("session %v", t.state)
	return 0, nil
}
