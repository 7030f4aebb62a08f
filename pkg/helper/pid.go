package helper

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultPIDPath = "/var/run/oauthprobe.pid"

// GetPIDPath returns the path to the PID file.
//
// Relative names resolve against the working directory when its parent
// exists, otherwise /var/run/oauthprobe.pid is used.
func GetPIDPath(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	if p := getPIDCurrentDir(filename); p != "" {
		return p
	}
	return defaultPIDPath
}

func getPIDCurrentDir(filename string) string {
	if filename == "" {
		return ""
	}
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return ""
	}
	if _, err := os.Stat(filepath.Dir(absPath)); err == nil {
		return absPath
	}
	return ""
}

// WritePID writes the current process ID to path, creating parent directories
func WritePID(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// RemovePID removes the PID file, ignoring a file that is already gone
func RemovePID(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
