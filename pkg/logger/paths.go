/* pkg/logger/paths.go */

package logger

import (
	"os"
	"path/filepath"
)

const (
	AppName       = "puppetstrap"
	SystemLogPath = "/var/log/puppetstrap/puppetstrap.log"
)

// PlatformLogPaths returns candidate log paths in order of priority.
func PlatformLogPaths() []string {
	paths := []string{SystemLogPath}

	state := os.Getenv("XDG_STATE_HOME")
	if state == "" {
		if home, err := os.UserHomeDir(); err == nil {
			state = filepath.Join(home, ".local", "state")
		}
	}
	if state != "" {
		paths = append(paths, filepath.Join(state, AppName, AppName+".log"))
	}

	return append(paths, AppName+".log")
}

// LogDir is the directory of the first writable log path, used by telemetry.
func LogDir() string {
	path, err := FindWritableLogPath(PlatformLogPaths())
	if err != nil {
		return os.TempDir()
	}
	return filepath.Dir(path)
}
