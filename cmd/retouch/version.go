package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
)

var (
	versionOnce   sync.Once
	cachedVersion string
)

// appVersion returns RETOUCH_VERSION, then the module version from build
// info, then the VCS revision, then "development".
func appVersion() string {
	versionOnce.Do(func() {
		cachedVersion = detectVersion()
	})
	return cachedVersion
}

func detectVersion() string {
	if v := strings.TrimSpace(os.Getenv("RETOUCH_VERSION")); v != "" {
		return v
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				return fmt.Sprintf("dev-%s", setting.Value)
			}
		}
	}
	return "development"
}
