package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvConfigDir = "FORGE_CONFIG_DIR"
	appDirName   = "forge"
)

// Dir is $FORGE_CONFIG_DIR when set, otherwise forge under the user config
// directory. Falls back to ./.forge when neither can be determined.
func Dir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvConfigDir)); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "." + appDirName
	}
	return filepath.Join(base, appDirName)
}

func LogPath() string {
	return filepath.Join(Dir(), "forge.log")
}

func HistoryPath() string {
	return filepath.Join(Dir(), "history.db")
}
