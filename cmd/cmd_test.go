package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/services/clipboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()
	for _, path := range [][]string{
		{"start"}, {"stop"}, {"status"}, {"state"}, {"watch"}, {"monitor"}, {"logs"},
		{"apps", "query"}, {"apps", "launch"}, {"apps", "save"},
		{"brightness", "get"}, {"brightness", "set"},
		{"clip", "list"}, {"clip", "copy"},
		{"audio", "list"}, {"audio", "default-sink"}, {"audio", "mute"},
		{"bluetooth", "power"}, {"bluetooth", "connect"}, {"bluetooth", "disconnect"},
		{"config", "show"}, {"config", "validate"}, {"config", "schema"},
		{"paths"}, {"version"},
	} {
		found, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestParseBrightness(t *testing.T) {
	tests := []struct {
		arg     string
		want    float64
		wantErr bool
	}{
		{arg: "0.4", want: 0.4},
		{arg: "40%", want: 0.4},
		{arg: "100%", want: 1},
		{arg: "140%", wantErr: true},
		{arg: "bright", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseBrightness(tt.arg)
			if tt.wantErr {
				assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDescribeEntry(t *testing.T) {
	assert.Equal(t, "two lines", describeEntry(clipboard.Entry{Kind: clipboard.Text, Text: "two\n  lines"}))
	assert.Equal(t, "[image/png 4x2]", describeEntry(clipboard.Entry{Kind: clipboard.RasterImage, MIME: "image/png", Width: 4, Height: 2}))
	assert.Equal(t, "[binary 3 bytes]", describeEntry(clipboard.Entry{Kind: clipboard.Blob, Data: []byte{1, 2, 3}}))
	assert.Equal(t, "[image/vnd.microsoft.icon 3 bytes]", describeEntry(clipboard.Entry{Kind: clipboard.Blob, MIME: "image/vnd.microsoft.icon", Data: []byte{0, 0, 1}}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héll…", truncate("héllo wörld", 5))
}

func TestReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deskd.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\nc\n"), 0644))

	all, err := readLines(path, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, all)

	last, err := readLines(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, last)
}

func TestFindLatestLogFilePrefersNonEmpty(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "deskd-2026-10-14.log")
	newer := filepath.Join(dir, "deskd-2026-10-15.log")
	require.NoError(t, os.WriteFile(older, []byte("line\n"), 0644))
	require.NoError(t, os.WriteFile(newer, nil, 0644))
	require.NoError(t, os.Chtimes(older, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))

	got, err := findLatestLogFile(dir)
	require.NoError(t, err)
	assert.Equal(t, older, got)

	_, err = findLatestLogFile(t.TempDir())
	assert.Error(t, err)
}

func TestMatchesService(t *testing.T) {
	assert.True(t, matchesService(`{"service":"audio","msg":"x"}`, "audio"))
	assert.False(t, matchesService(`{"service":"battery","msg":"x"}`, "audio"))
	assert.True(t, matchesService(`time=... level=warning service=audio msg=x`, "audio"))
	assert.True(t, matchesService("anything", ""))
}

func TestPrintLogText(t *testing.T) {
	var buf bytes.Buffer
	printLogText(&buf, `{"time":"2026-10-16T09:30:00Z","level":"warning","msg":"pass failed","component":"deskd","service":"audio"}`)
	out := buf.String()
	assert.Contains(t, out, "09:30:00")
	assert.Contains(t, out, "pass failed")
	assert.Contains(t, out, "audio")

	buf.Reset()
	printLogText(&buf, "plain text line")
	assert.Equal(t, "plain text line\n", buf.String())
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "deskd.yml")
	require.NoError(t, os.WriteFile(valid, []byte("services:\n  clipboard:\n    max_entries: 20\n"), 0644))
	assert.NoError(t, validateFile(valid))

	unknown := filepath.Join(dir, "unknown", "deskd.yml")
	require.NoError(t, os.MkdirAll(filepath.Dir(unknown), 0755))
	require.NoError(t, os.WriteFile(unknown, []byte("services:\n  wifi:\n    enabled: true\n"), 0644))
	err := validateFile(unknown)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation), "unknown keys fail the schema: %v", err)

	bad := filepath.Join(dir, "bad", "deskd.yml")
	require.NoError(t, os.MkdirAll(filepath.Dir(bad), 0755))
	require.NoError(t, os.WriteFile(bad, []byte("services:\n  brightness:\n    poll_interval: soon\n"), 0644))
	err = validateFile(bad)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid), "values are checked after the schema: %v", err)
}
