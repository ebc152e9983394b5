// Package build carries the version stamp injected at release time:
//
//	go build -ldflags "-X github.com/danieledinun/aitreon-sub001/cmd/aitreon-call/internal/build.Version=v1.0.0 \
//	  -X github.com/danieledinun/aitreon-sub001/cmd/aitreon-call/internal/build.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/danieledinun/aitreon-sub001/cmd/aitreon-call/internal/build.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unstamped binaries report a development build.
package build

import (
	"fmt"
	"runtime"
)

// Set at build time via -ldflags; the defaults identify a local build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns the one-line banner printed by the version command.
func String() string {
	if Commit == "unknown" {
		return fmt.Sprintf("aitreon-call %s (development build) %s/%s",
			Version, runtime.GOOS, runtime.GOARCH)
	}
	return fmt.Sprintf("aitreon-call %s (commit %s, built %s) %s/%s",
		Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}
