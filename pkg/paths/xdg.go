// Package paths provides XDG-compliant path resolution for deskd.
//
// Resolution order:
// 1. DESKD_HOME (portable root) → $DESKD_HOME/{config,data,state,cache}
// 2. XDG env vars → $XDG_*_HOME/deskd
// 3. Platform defaults → ~/.config/deskd, ~/.local/share/deskd, etc.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const appName = "deskd"

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if deskHome := os.Getenv("DESKD_HOME"); deskHome != "" {
		return filepath.Join(deskHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getDataHome returns the base data home directory.
func getDataHome() string {
	if deskHome := os.Getenv("DESKD_HOME"); deskHome != "" {
		return filepath.Join(deskHome, "data")
	}
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return xdgDataHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "share")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if deskHome := os.Getenv("DESKD_HOME"); deskHome != "" {
		return filepath.Join(deskHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// getCacheHome returns the base cache home directory.
func getCacheHome() string {
	if deskHome := os.Getenv("DESKD_HOME"); deskHome != "" {
		return filepath.Join(deskHome, "cache")
	}
	if xdgCacheHome := os.Getenv("XDG_CACHE_HOME"); xdgCacheHome != "" {
		return xdgCacheHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".cache")
	}
	return ""
}

// ConfigDir returns the deskd configuration directory.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// StateDir returns the deskd state directory.
// Used for the pid file and logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// CacheDir returns the deskd cache directory.
// Used for regenerable data such as application frequency counters.
func CacheDir() string {
	base := getCacheHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, appName)
}

// LogDir returns the directory the daemon writes its log files to.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// RuntimeDir returns the deskd runtime directory for sockets.
// Uses XDG_RUNTIME_DIR when available, falls back to StateDir.
func RuntimeDir() string {
	if deskHome := os.Getenv("DESKD_HOME"); deskHome != "" {
		return filepath.Join(deskHome, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// SocketPath returns the path to the deskd unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "deskd.sock")
}

// PidFilePath returns the path to the deskd PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "deskd.pid")
}

// FrequencyCachePath returns the path of the application usage counter file.
func FrequencyCachePath() string {
	return filepath.Join(CacheDir(), "apps", "apps_frequency.yml")
}

// CliphistDBPath returns the path of the cliphist database.
// cliphist itself does not use the deskd namespace.
func CliphistDBPath() string {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(homeDir, ".cache")
	}
	return filepath.Join(base, "cliphist", "db")
}

// DesktopFileDirs returns the directories searched for desktop entries,
// deduplicated and filtered to those that exist.
func DesktopFileDirs() []string {
	home, _ := os.UserHomeDir()

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" && home != "" {
		configHome = filepath.Join(home, ".config")
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" && home != "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	var candidates []string
	if configHome != "" {
		candidates = append(candidates, configHome)
	}
	candidates = append(candidates, splitList(os.Getenv("XDG_CONFIG_DIRS"), "/etc/xdg")...)
	if dataHome != "" {
		candidates = append(candidates, filepath.Join(dataHome, "applications"))
	}
	for _, dir := range splitList(os.Getenv("XDG_DATA_DIRS"), "/usr/local/share:/usr/share") {
		candidates = append(candidates, filepath.Join(dir, "applications"))
	}
	candidates = append(candidates,
		"/usr/share/xsessions",
		"/etc/xdg/autostart",
		"/var/lib/snapd/desktop/applications",
		"/var/lib/flatpak/exports/share",
	)
	if home != "" {
		candidates = append(candidates, filepath.Join(home, ".local", "share", "flatpak", "exports", "share"))
	}

	return existingUnique(candidates)
}

func splitList(value, fallback string) []string {
	if strings.TrimSpace(value) == "" {
		value = fallback
	}
	return filepath.SplitList(value)
}

func existingUnique(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	result := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		clean := filepath.Clean(dir)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		if info, err := os.Stat(clean); err == nil && info.IsDir() {
			result = append(result, clean)
		}
	}
	return result
}

// EnsureDirs creates all deskd directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		CacheDir(),
		RuntimeDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
