// Package paths resolves where linearmcp reads and writes its files.
package paths

import (
	"os"
	"path/filepath"
)

// LocalConfigFile is the project-local config, relative to the working directory.
const LocalConfigFile = ".linearmcp/config.yaml"

// UserConfigDir returns ~/.config/linearmcp, or empty if the home directory
// is unavailable.
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "linearmcp")
}

// UserConfigFile returns ~/.config/linearmcp/config.yaml, or empty.
func UserConfigFile() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// ResolveConfigFile picks the config file to read.
//
// Lookup order:
//   - explicit, when set, even if it does not exist yet
//   - dir/.linearmcp/config.yaml
//   - ~/.config/linearmcp/config.yaml
//
// Passing a directory as explicit selects config.yaml inside it. Returns ""
// when nothing is found.
func ResolveConfigFile(explicit, dir string) string {
	if explicit != "" {
		explicit = filepath.Clean(explicit)
		if info, err := os.Stat(explicit); err == nil && info.IsDir() {
			return filepath.Join(explicit, "config.yaml")
		}
		return explicit
	}

	if dir == "" {
		dir = "."
	}
	local := filepath.Join(dir, LocalConfigFile)
	if fileExists(local) {
		return local
	}

	if user := UserConfigFile(); user != "" && fileExists(user) {
		return user
	}
	return ""
}

// WritePath returns where commands that edit the config should write: the
// file in use, or the project-local config under dir.
func WritePath(used, dir string) string {
	if used != "" {
		return used
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, LocalConfigFile)
}

// TracesFile returns ~/.config/linearmcp/traces/traces.jsonl, or empty.
func TracesFile() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
