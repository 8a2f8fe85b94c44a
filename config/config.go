package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/deskd/errors"
	"github.com/grovetools/deskd/pkg/paths"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// configFileNames are searched in order inside the config directory.
var configFileNames = []string{"deskd.yml", "deskd.yaml", "deskd.toml"}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Load reads and parses a deskd configuration file, merges any override file
// next to it, and applies defaults.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	for _, overridePath := range overrideFiles(path) {
		if _, err := os.Stat(overridePath); err != nil {
			continue
		}
		override, err := loadFile(overridePath)
		if err != nil {
			return nil, err
		}
		cfg = mergeConfigs(cfg, override)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads the configuration from the deskd config directory,
// falling back to defaults when no file exists.
func LoadDefault() (*Config, error) {
	path, err := FindConfigFile(paths.ConfigDir())
	if err != nil {
		if errors.Is(err, errors.ErrCodeConfigNotFound) {
			return Default(), nil
		}
		return nil, err
	}
	return Load(path)
}

// LoadFrom loads an explicit path when given, otherwise the default location.
func LoadFrom(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return LoadDefault()
	}
	return Load(path)
}

// FindConfigFile returns the first deskd config file present in dir.
func FindConfigFile(dir string) (string, error) {
	for _, name := range configFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.ConfigNotFound(filepath.Join(dir, configFileNames[0]))
}

// LoadRaw parses a config file into a generic document, used for schema
// validation where typed decoding would hide unknown keys.
func LoadRaw(path string) (map[string]interface{}, error) {
	data, err := readExpanded(path)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]interface{})
	if isTOML(path) {
		err = toml.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config").
			WithDetail("path", path)
	}
	return raw, nil
}

// Validate checks semantic constraints the schema cannot express.
func (c *Config) Validate() error {
	switch c.Services.Battery.Icons {
	case "", "internal", "ags":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("services.battery.icons must be 'internal' or 'ags', got '%s'", c.Services.Battery.Icons))
	}
	if c.Services.Clipboard.MaxEntries < 0 {
		return errors.ConfigInvalid("services.clipboard.max_entries must not be negative")
	}
	if c.Watch.DebounceMs < 0 {
		return errors.ConfigInvalid("watch.debounce_ms must not be negative")
	}
	if c.Services.Brightness.PollInterval != "" && c.Services.Brightness.PollEvery() <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("services.brightness.poll_interval is not a positive duration: '%s'", c.Services.Brightness.PollInterval))
	}
	return nil
}

func loadFile(path string) (*Config, error) {
	data, err := readExpanded(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if isTOML(path) {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config").
				WithDetail("path", path)
		}
		// TOML has no inline catch-all; collect unknown top-level keys by hand.
		var raw map[string]interface{}
		if err := toml.Unmarshal(data, &raw); err == nil {
			cfg.Extensions = extractExtensions(raw)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config").
				WithDetail("path", path)
		}
	}
	return &cfg, nil
}

func readExpanded(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	return []byte(expandEnvVars(string(data))), nil
}

func extractExtensions(raw map[string]interface{}) map[string]interface{} {
	known := map[string]bool{"version": true, "daemon": true, "watch": true, "services": true}
	var ext map[string]interface{}
	for key, value := range raw {
		if known[key] {
			continue
		}
		if ext == nil {
			ext = make(map[string]interface{})
		}
		ext[key] = value
	}
	return ext
}

func overrideFiles(path string) []string {
	dir := filepath.Dir(path)
	if isTOML(path) {
		return []string{filepath.Join(dir, "deskd.override.toml")}
	}
	return []string{
		filepath.Join(dir, "deskd.override.yml"),
		filepath.Join(dir, "deskd.override.yaml"),
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// expandEnvVars replaces ${VAR} references with environment values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarRegex.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
