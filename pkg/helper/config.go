package helper

import (
	"os"
	"path/filepath"
)

// SystemConfigDir is the last directory searched for configuration files.
const SystemConfigDir = "/etc/hublink"

// GetCfgPath resolves a configuration file name to a path.
//
// Lookup order:
// 1. An absolute filename is returned as is.
// 2. ./{filename}, then ./configs/{filename}.
// 3. $XDG_CONFIG_HOME/hublink/{filename} (or ~/.config/hublink).
// 4. SystemConfigDir/{filename}, whether or not it exists.
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}

	if filepath.IsAbs(filename) {
		return filename
	}

	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, filename)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if abs, err := filepath.Abs(candidate); err == nil {
			return abs
		}
	}

	return filepath.Join(SystemConfigDir, filename)
}

func searchDirs() []string {
	var dirs []string
	if wd, err := os.Getwd(); err == nil && wd != "" {
		dirs = append(dirs, wd, filepath.Join(wd, "configs"))
	}
	if userDir, err := os.UserConfigDir(); err == nil && userDir != "" {
		dirs = append(dirs, filepath.Join(userDir, "hublink"))
	}
	return dirs
}
