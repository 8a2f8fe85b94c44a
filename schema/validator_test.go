package schema

import (
	"testing"

	"github.com/grovetools/deskd/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "daemon": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "socket": {"type": "string"},
        "shutdown_timeout": {"type": "string"}
      }
    },
    "services": {
      "type": "object",
      "properties": {
        "clipboard": {
          "type": "object",
          "properties": {"max_entries": {"type": "integer", "minimum": 1}}
        }
      }
    }
  }
}`

func TestValidate(t *testing.T) {
	v, err := NewValidator([]byte(testSchema))
	require.NoError(t, err)

	tests := []struct {
		name      string
		doc       interface{}
		locations []string
	}{
		{
			name: "valid",
			doc: map[string]interface{}{
				"daemon":   map[string]interface{}{"socket": "/run/user/1000/deskd.sock"},
				"services": map[string]interface{}{"clipboard": map[string]interface{}{"max_entries": 20}},
			},
		},
		{
			name:      "wrong type",
			doc:       map[string]interface{}{"daemon": map[string]interface{}{"socket": 3}},
			locations: []string{"/daemon/socket"},
		},
		{
			name: "several issues sorted",
			doc: map[string]interface{}{
				"services": map[string]interface{}{"clipboard": map[string]interface{}{"max_entries": 0}},
				"daemon":   map[string]interface{}{"socket": true},
			},
			locations: []string{"/daemon/socket", "/services/clipboard/max_entries"},
		},
		{
			name:      "unknown key",
			doc:       map[string]interface{}{"deamon": map[string]interface{}{}},
			locations: []string{"/"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.doc)
			if tt.locations == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation))

			derr, ok := errors.As(err)
			require.True(t, ok)
			issues, ok := derr.Details["issues"].([]Issue)
			require.True(t, ok)
			var got []string
			for _, issue := range issues {
				got = append(got, issue.Location)
			}
			assert.Equal(t, tt.locations, got)
		})
	}
}

func TestNewValidatorRejectsBadSchema(t *testing.T) {
	_, err := NewValidator([]byte(`{"type": `))
	assert.Error(t, err)
}
