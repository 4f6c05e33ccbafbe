package cli

import (
	"path/filepath"
	"time"
)

// Config holds all CLI configuration, so commands can be tested without globals
type Config struct {
	ConfigFile  string
	ProjectRoot string
	Verbosity   string
	Version     string

	// ShutdownTimeout bounds the drain when watch or stop shuts the renderer down
	ShutdownTimeout time.Duration
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot:     ".",
		Verbosity:       "info",
		ShutdownTimeout: 30 * time.Second,
	}
}

// resolve makes path relative to the project root
func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.ProjectRoot, path)
}
