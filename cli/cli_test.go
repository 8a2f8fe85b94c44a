package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grovetools/deskd/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandlerMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unknown service",
			err:  errors.ServiceNotFound("wifi"),
			want: "Service 'wifi' is not known",
		},
		{
			name: "unavailable service",
			err:  errors.ServiceUnavailable("audio", nil),
			want: "Service 'audio' is unavailable",
		},
		{
			name: "missing config",
			err:  errors.ConfigNotFound("/tmp/deskd.yml"),
			want: "Configuration not found: /tmp/deskd.yml",
		},
		{
			name: "invalid input",
			err:  errors.New(errors.ErrCodeInvalidInput, "unknown desktop file"),
			want: "unknown desktop file",
		},
		{
			name: "other",
			err:  errors.New(errors.ErrCodeTransportFailed, "pactl exited"),
			want: "Error: TRANSPORT_FAILED: pactl exited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := &ErrorHandler{Out: &buf}
			returned := h.Handle(tt.err)
			assert.Equal(t, tt.err, returned)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestErrorHandlerVerboseDetails(t *testing.T) {
	var buf bytes.Buffer
	h := &ErrorHandler{Verbose: true, Out: &buf}
	h.Handle(errors.ServiceNotFound("wifi"))
	assert.Contains(t, buf.String(), `"code": "SERVICE_NOT_FOUND"`)
}

func TestWrapText(t *testing.T) {
	wrapped := wrapText("one two three four five", 9)
	for _, line := range strings.Split(wrapped, "\n") {
		assert.LessOrEqual(t, len(line), 9)
	}
	assert.Equal(t, "keep\nbreaks", wrapText("keep\nbreaks", 40))
}

func TestParseDescription(t *testing.T) {
	desc, examples := parseDescription("Does a thing.\nExamples:\n  deskd state battery")
	assert.Equal(t, "Does a thing.", desc)
	assert.Equal(t, "deskd state battery", examples)
}
