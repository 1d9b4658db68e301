// Package config carries the build stamp of the sitecraft binaries. The
// variables are set with -ldflags "-X .../pkg/config.Version=...".
package config

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildInfo is the build stamp as printed by `version --output json`.
type BuildInfo struct {
	Program   string `json:"program"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetBuildInfo returns the build stamp for program.
func GetBuildInfo(program string) BuildInfo {
	return BuildInfo{
		Program:   program,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the stamp the way the version commands print it.
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", b.Program, b.Version)
	fmt.Fprintf(&sb, "  commit: %s\n", b.Commit)
	fmt.Fprintf(&sb, "  built:  %s\n", b.BuildTime)
	fmt.Fprintf(&sb, "  go:     %s %s", b.GoVersion, b.Platform)
	return sb.String()
}

// UserAgent is the User-Agent a program sends to the API, for example
// "sitectl/1.4.0 (linux/amd64)". The server records it as the client that
// holds a refresh token.
func UserAgent(program string) string {
	return fmt.Sprintf("%s/%s (%s/%s)", program, Version, runtime.GOOS, runtime.GOARCH)
}
