package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags(t *testing.T) {
	var p Profiler
	cmd := &cobra.Command{Use: "start"}
	p.AddFlags(cmd)

	assert.False(t, p.Enabled())
	require.NoError(t, cmd.Flags().Set("mem-profile", "heap.out"))
	assert.True(t, p.Enabled())
	assert.Equal(t, "heap.out", p.MemPath)
}

func TestStartStopWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	p := Profiler{
		CPUPath: filepath.Join(dir, "cpu.out"),
		MemPath: filepath.Join(dir, "heap.out"),
	}
	logger, hook := test.NewNullLogger()

	require.NoError(t, p.Start())
	p.Stop(logger)

	for _, path := range []string{p.CPUPath, p.MemPath} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size(), path)
	}
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestStartFailsOnBadPath(t *testing.T) {
	p := Profiler{CPUPath: filepath.Join(t.TempDir(), "missing", "cpu.out")}
	assert.Error(t, p.Start())
}
