// Package version exposes carton's build-time version information.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info holds version information.
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
	Platform  string
}

// Get returns version information for the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns the one-line version string.
func (i Info) String() string {
	return fmt.Sprintf("carton version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns the detailed multi-line build report.
func (i Info) FullString() string {
	return fmt.Sprintf(`Version: %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s`, i.Version, i.BuildDate, i.GitCommit, i.Platform, i.GoVersion)
}
