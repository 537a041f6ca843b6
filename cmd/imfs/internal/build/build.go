// Package build holds build-time version information injected via ldflags.
//
// To inject values at build time:
//
//	go build -ldflags "-X github.com/haivivi/imfs/cmd/imfs/internal/build.Version=v1.0.0 \
//	  -X github.com/haivivi/imfs/cmd/imfs/internal/build.Commit=$(git rev-parse --short HEAD)" \
//	  ./cmd/imfs
package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

// Info is the version information reported by "imfs version".
type Info struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Go      string `json:"go" yaml:"go"`
	OS      string `json:"os" yaml:"os"`
	Arch    string `json:"arch" yaml:"arch"`
}

// Get returns the build information. Without ldflags, the module version
// recorded by "go install" is used when available.
func Get() Info {
	v := Version
	if v == "dev" {
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	return Info{Version: v, Commit: Commit, Go: runtime.Version(), OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// String returns a formatted version string.
func String() string {
	i := Get()
	return fmt.Sprintf("imfs %s (%s) %s/%s", i.Version, i.Commit, i.OS, i.Arch)
}
