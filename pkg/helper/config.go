package helper

import (
	"os"
	"path/filepath"
)

const systemConfigDir = "/etc/oauthprobe"

// configDirs are searched in order for a relative config file name
var configDirs = []string{".", "configs"}

// GetCfgPath resolves the configuration file. Absolute names are returned
// unchanged; relative names are looked up in the working directory and its
// configs/ subdirectory before falling back to /etc/oauthprobe.
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("config filename cannot be empty")
	}
	if filepath.IsAbs(filename) {
		return filename
	}
	for _, dir := range configDirs {
		p, err := filepath.Abs(filepath.Join(dir, filename))
		if err == nil && isFile(p) {
			return p
		}
	}
	return filepath.Join(systemConfigDir, filename)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
