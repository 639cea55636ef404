// Package config reads relisted settings from Viper and resolves filesystem locations.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const appName = "relisted"

// ExpandPath expands a leading ~ and $VAR references in a path.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + strings.TrimPrefix(path, "~")
		}
	}
	return os.ExpandEnv(path)
}

// ConfigDir returns the directory searched for config.yaml.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return ExpandPath(filepath.Join("~", ".config", appName))
}

// DataDir returns the directory holding the default database.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return ExpandPath(filepath.Join("~", ".local", "share", appName))
}

// DatabasePath returns the configured database path, expanded, falling back to
// relisted.db inside DataDir.
func DatabasePath() string {
	if v := viper.GetString(KeyDatabasePath); v != "" {
		return ExpandPath(v)
	}
	return filepath.Join(DataDir(), appName+".db")
}
