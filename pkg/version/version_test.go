package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: "1", Minor: "2", Patch: "3", Metadata: "rc1", Build: "abc123"}
	if got, want := v.String(), "Version: 1.2.3-rc1\nBuild: abc123"; got != want {
		t.Fatalf("got %q, expected %q", got, want)
	}
}

func TestVersionStringUnstamped(t *testing.T) {
	s := MinidbgVersion.String()
	if !strings.HasPrefix(s, "Version: 0.1.0\nBuild: ") || strings.Contains(s, "$Id$") {
		t.Fatalf("unexpected version %q", s)
	}
}

func TestBuildInfo(t *testing.T) {
	first := strings.SplitN(BuildInfo(), "\n", 2)[0]
	if !strings.HasPrefix(first, runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH) {
		t.Fatalf("unexpected build line %q", first)
	}
}
