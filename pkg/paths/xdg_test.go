package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeskdHomeOverridesXDG(t *testing.T) {
	root := t.TempDir()
	t.Setenv("DESKD_HOME", root)
	t.Setenv("XDG_CONFIG_HOME", "/nowhere")

	assert.Equal(t, filepath.Join(root, "config", "deskd"), ConfigDir())
	assert.Equal(t, filepath.Join(root, "cache", "deskd"), CacheDir())
	assert.Equal(t, filepath.Join(root, "run", "deskd.sock"), SocketPath())
	assert.Equal(t, filepath.Join(root, "state", "deskd", "deskd.pid"), PidFilePath())
	assert.Equal(t, filepath.Join(root, "cache", "deskd", "apps", "apps_frequency.yml"), FrequencyCachePath())
}

func TestXDGDirs(t *testing.T) {
	t.Setenv("DESKD_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "/tmp/cache")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	assert.Equal(t, "/tmp/cache/deskd", CacheDir())
	assert.Equal(t, "/run/user/1000/deskd/deskd.sock", SocketPath())
	assert.Equal(t, "/tmp/cache/cliphist/db", CliphistDBPath())
}

func TestDesktopFileDirsFiltersMissingAndDuplicates(t *testing.T) {
	root := t.TempDir()
	dataA := filepath.Join(root, "a")
	dataB := filepath.Join(root, "b")
	require.NoError(t, os.MkdirAll(filepath.Join(dataA, "applications"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dataB, "applications"), 0755))

	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "missing-config"))
	t.Setenv("XDG_CONFIG_DIRS", filepath.Join(root, "missing-etc"))
	t.Setenv("XDG_DATA_HOME", dataA)
	t.Setenv("XDG_DATA_DIRS", dataA+string(os.PathListSeparator)+dataB)

	dirs := DesktopFileDirs()
	assert.Contains(t, dirs, filepath.Join(dataA, "applications"))
	assert.Contains(t, dirs, filepath.Join(dataB, "applications"))
	assert.NotContains(t, dirs, filepath.Join(root, "missing-config"))

	count := 0
	for _, d := range dirs {
		if d == filepath.Join(dataA, "applications") {
			count++
		}
	}
	assert.Equal(t, 1, count, "duplicate dirs should be collapsed")
}
