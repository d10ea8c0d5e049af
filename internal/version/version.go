// Package version holds build metadata injected with -ldflags.
//
//	go build -ldflags "-X github.com/longkey1/sectutor/internal/version.Version=v1.2.3 \
//	  -X github.com/longkey1/sectutor/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/longkey1/sectutor/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Short returns the version number only
func Short() string {
	return Version
}

// Info returns multi-line version details
func Info() string {
	return fmt.Sprintf("sectutor %s\n  commit:     %s\n  built:      %s\n  go version: %s\n  platform:   %s/%s",
		Version, Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
