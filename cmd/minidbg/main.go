package main

import (
	"os"

	"github.com/minidbg/minidbg/cmd/minidbg/cmds"
	"github.com/minidbg/minidbg/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.MinidbgVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
