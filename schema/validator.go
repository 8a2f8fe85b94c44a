// Package schema checks deskd configuration documents against the JSON
// Schema generated from the config types.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/grovetools/deskd/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const resourceName = "deskd.schema.json"

// Issue is one schema violation, located by JSON pointer.
type Issue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Location, i.Message)
}

// Validator holds a compiled schema.
type Validator struct {
	compiled *jsonschema.Schema
}

// NewValidator compiles schemaData.
func NewValidator(schemaData []byte) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resourceName, bytes.NewReader(schemaData)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks doc, usually the generic document from config.LoadRaw.
// Violations come back as a CONFIG_VALIDATION error carrying an "issues"
// detail sorted by location.
func (v *Validator) Validate(doc interface{}) error {
	// YAML and TOML decoders produce int and map shapes the validator
	// does not accept, so normalize through JSON first.
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "configuration cannot be represented as JSON")
	}
	var normalized interface{}
	if err := json.Unmarshal(data, &normalized); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to normalize configuration")
	}

	err = v.compiled.Validate(normalized)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "schema validation failed")
	}

	issues := Issues(verr)
	lines := make([]string, len(issues))
	for i, issue := range issues {
		lines[i] = "- " + issue.String()
	}
	return errors.New(errors.ErrCodeConfigValidation, "schema validation failed:\n"+strings.Join(lines, "\n")).
		WithDetail("issues", issues)
}

// Issues flattens the leaf causes of verr.
func Issues(verr *jsonschema.ValidationError) []Issue {
	var out []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, Issue{Location: loc, Message: e.Message})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}
