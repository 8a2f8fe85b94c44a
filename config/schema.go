package config

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// GenerateSchema generates the JSON Schema for deskd.yml.
func GenerateSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		// Use YAML field names for property names
		FieldNameTag: "yaml",
	}

	// Extensions are inlined in the file, so the schema lists the known ones
	// explicitly instead of reflecting the catch-all map.
	type documentConfig struct {
		Version  string                 `yaml:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
		Daemon   DaemonConfig           `yaml:"daemon,omitempty" jsonschema:"description=Daemon socket and shutdown settings"`
		Watch    WatchConfig            `yaml:"watch,omitempty" jsonschema:"description=Settings shared by all filesystem watchers"`
		Services ServicesConfig         `yaml:"services,omitempty" jsonschema:"description=Per-service settings"`
		Logging  map[string]interface{} `yaml:"logging,omitempty" jsonschema:"description=Logging settings (level, report_caller, file, format)"`
	}

	schema := r.Reflect(&documentConfig{})
	schema.Title = "deskd Configuration"
	schema.Description = "Schema for deskd.yml and deskd.toml."
	schema.Version = "https://json-schema.org/draft/2020-12/schema"

	return json.MarshalIndent(schema, "", "  ")
}
