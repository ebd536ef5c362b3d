package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	configPathEnvVar  = "RETOUCH_CONFIG_PATH"
	defaultConfigDir  = ".retouch"
	defaultConfigName = "retouch"
	defaultConfigType = "yaml"
)

// EnvLookup resolves an environment variable.
type EnvLookup func(string) (string, bool)

// DefaultEnvLookup reads the process environment.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// SearchPaths returns the directories searched for retouch.yaml when no
// explicit path is given: the working directory, then $HOME/.retouch.
func SearchPaths(homeDir func() (string, error)) []string {
	paths := []string{"."}
	if homeDir == nil {
		homeDir = os.UserHomeDir
	}
	if home, err := homeDir(); err == nil && strings.TrimSpace(home) != "" {
		paths = append(paths, filepath.Join(home, defaultConfigDir))
	}
	return paths
}

// explicitPath returns the --config value, else RETOUCH_CONFIG_PATH.
func explicitPath(path string, envLookup EnvLookup) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if envLookup == nil {
		envLookup = DefaultEnvLookup
	}
	if value, ok := envLookup(configPathEnvVar); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
