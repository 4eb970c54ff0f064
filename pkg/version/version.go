// Package version reports the minidbg release and how the binary was built.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Version is a minidbg release number plus the revision it was built from.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	// Build is overridden at link time or filled from the VCS stamp.
	Build string
}

// MinidbgVersion is the current version of minidbg.
var MinidbgVersion = Version{
	Major: "0", Minor: "1", Patch: "0",
	Build: "$Id$",
}

func (v Version) String() string {
	ver := fmt.Sprintf("Version: %s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return fmt.Sprintf("%s\nBuild: %s", ver, v.revision())
}

func (v Version) revision() string {
	if !strings.HasPrefix(v.Build, "$Id$") {
		return v.Build
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return "unknown"
}

// BuildInfo describes the toolchain, the platform and the dependencies the
// binary was built with. Only linux/amd64 binaries can launch targets.
func BuildInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if runtime.GOOS != "linux" || runtime.GOARCH != "amd64" {
		b.WriteString(" (native backend unavailable)")
	}
	b.WriteByte('\n')

	info, ok := debug.ReadBuildInfo()
	if !ok {
		b.WriteString("not built in module mode\n")
		return b.String()
	}
	for _, dep := range info.Deps {
		if dep.Replace != nil {
			dep = dep.Replace
		}
		fmt.Fprintf(&b, " dep\t%s\t%s\n", dep.Path, dep.Version)
	}
	return b.String()
}
