package command

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/grovetools/deskd/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    int64
		wantErr bool
	}{
		{name: "plain", output: "42\n", want: 42},
		{name: "first token wins", output: "  7 extra words\n8\n", want: 7},
		{name: "negative", output: "-3", want: -3},
		{name: "empty", output: "", wantErr: true},
		{name: "whitespace only", output: " \n\t", wantErr: true},
		{name: "not a number", output: "abc 1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInt([]byte(tt.output))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeDataInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInts(t *testing.T) {
	got, err := ParseInts([]byte("10\tfirst\n20\n\n30 x y\n"))
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, got)

	got, err = ParseInts(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseInts([]byte("10\nnope\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		argType string
		value   string
		valid   bool
	}{
		{"macAddress", "AA:BB:CC:00:11:22", true},
		{"macAddress", "AA:BB:CC:00:11", false},
		{"macAddress", "AA:BB:CC:00:11:22; rm", false},
		{"sinkName", "alsa_output.pci-0000_00_1f.3.analog-stereo", true},
		{"sinkName", "-flag", false},
		{"desktopFile", "/usr/share/applications/firefox.desktop", true},
		{"desktopFile", "firefox.desktop", false},
		{"desktopFile", "/usr/share/applications/../x.desktop", false},
		{"desktopFile", "/usr/bin/sh", false},
		{"clipID", "123", true},
		{"clipID", "12a", false},
		{"percent", "0", true},
		{"percent", "100", true},
		{"percent", "101", false},
		{"percent", "-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.argType+"/"+tt.value, func(t *testing.T) {
			err := Validate(tt.argType, tt.value)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
			}
		})
	}

	assert.Error(t, Validate("unknown", "x"))
}

// shellExecutor runs every command through sh so tests do not depend on
// specific binaries being installed.
type shellExecutor struct {
	script string
	calls  []string
}

func (s *shellExecutor) Command(name string, args ...string) *exec.Cmd {
	return s.CommandContext(context.Background(), name, args...)
}

func (s *shellExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	s.calls = append(s.calls, strings.Join(append([]string{name}, args...), " "))
	return exec.CommandContext(ctx, "sh", "-c", s.script)
}

func TestRunnerOutput(t *testing.T) {
	fake := &shellExecutor{script: "echo 55 brightness"}
	r := NewRunnerWithExecutor(fake)

	n, err := r.Int(context.Background(), "brightnessctl", "get")
	require.NoError(t, err)
	assert.Equal(t, int64(55), n)
	assert.Equal(t, []string{"brightnessctl get"}, fake.calls)
}

func TestRunnerFailure(t *testing.T) {
	r := NewRunnerWithExecutor(&shellExecutor{script: "echo oops >&2; exit 3"})

	_, err := r.Output(context.Background(), "pactl", "info")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommandFailed))
	assert.Contains(t, err.Error(), "pactl info")
}

func TestRunnerInput(t *testing.T) {
	r := NewRunnerWithExecutor(&shellExecutor{script: "cat"})

	out, err := r.OutputWithInput(context.Background(), strings.NewReader("1\tpayload"), "cliphist", "decode")
	require.NoError(t, err)
	assert.Equal(t, "1\tpayload", string(out))
}
