package cmds

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minidbg/minidbg/pkg/config"
	"github.com/minidbg/minidbg/pkg/logflags"
	"github.com/minidbg/minidbg/pkg/proc"
	"github.com/minidbg/minidbg/pkg/proc/native"
	"github.com/minidbg/minidbg/pkg/terminal"
	"github.com/minidbg/minidbg/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// initFile is the path to initialization file.
	initFile string
	// workingDir is the working directory for running the program.
	workingDir string
	// disableASLR launches the target without address space randomization.
	disableASLR bool

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command

	conf *config.Config
)

const minidbgCommandLongDesc = `minidbg is a minimal debugger for native Linux programs.

minidbg launches the program under ptrace, stops it before its first
instruction and lets you set breakpoints at raw addresses:

	minidbg> break 0x401136
	minidbg> continue

Flags must precede the program path, everything after the path is passed to
the program.`

// New returns an initialized command tree.
func New() *cobra.Command {
	// Config setup and load.
	conf = config.LoadConfig()

	// Main minidbg root command.
	rootCommand = &cobra.Command{
		Use:   "minidbg [flags] <path/to/binary> [args...]",
		Short: "minidbg is a minimal debugger for native programs.",
		Long:  minidbgCommandLongDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a path to a binary")
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args, conf))
		},
	}
	rootCommand.Flags().SetInterspersed(false)
	addFlags(rootCommand.Flags(), conf)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "minidbg\n%s\n", version.MinidbgVersion)
			fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
		},
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

func addFlags(fs *pflag.FlagSet, conf *config.Config) {
	fs.BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	fs.StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (debugger, native).")
	fs.StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor.")
	fs.StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	fs.StringVar(&workingDir, "wd", "", "Working directory for running the program.")
	fs.BoolVar(&disableASLR, "disable-aslr", conf.ASLRDisabled(), "Run the program with address space layout randomization disabled.")
}

func execute(processArgs []string, conf *config.Config) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	var flags proc.LaunchFlags
	if disableASLR {
		flags |= proc.LaunchDisableASLR
	}
	p, err := native.Launch(processArgs, workingDir, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("Started debugging process with Pid %d\n", p.Pid())

	tgt := proc.NewTarget(p, processArgs[0], p.Arch())
	term := terminal.New(tgt, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	if err := p.Kill(); err != nil {
		logflags.DebuggerLogger().Errorf("could not kill process %d: %v", p.Pid(), err)
	}
	return status
}
