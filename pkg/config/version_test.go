package config

import (
	"runtime"
	"strings"
	"testing"
)

func TestBuildInfo(t *testing.T) {
	old := Version
	Version = "1.4.0"
	defer func() { Version = old }()

	info := GetBuildInfo("sitectl")
	if info.Program != "sitectl" || info.Version != "1.4.0" {
		t.Errorf("GetBuildInfo() = %+v", info)
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
	if !strings.HasPrefix(info.String(), "sitectl 1.4.0\n  commit: ") {
		t.Errorf("String() = %q", info.String())
	}
}

func TestUserAgent(t *testing.T) {
	old := Version
	Version = "1.4.0"
	defer func() { Version = old }()

	want := "sitectl/1.4.0 (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
	if got := UserAgent("sitectl"); got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}
