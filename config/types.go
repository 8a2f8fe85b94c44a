package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config is the deskd configuration loaded from deskd.yml or deskd.toml.
type Config struct {
	Version  string         `yaml:"version,omitempty" toml:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Daemon   DaemonConfig   `yaml:"daemon,omitempty" toml:"daemon,omitempty" jsonschema:"description=Daemon socket and shutdown settings"`
	Watch    WatchConfig    `yaml:"watch,omitempty" toml:"watch,omitempty" jsonschema:"description=Settings shared by all filesystem watchers"`
	Services ServicesConfig `yaml:"services,omitempty" toml:"services,omitempty" jsonschema:"description=Per-service settings"`

	// Extensions captures all other top-level keys, such as logging.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`
}

// DaemonConfig configures the socket server.
type DaemonConfig struct {
	Socket          string `yaml:"socket,omitempty" toml:"socket,omitempty" jsonschema:"description=Unix socket path (default: $XDG_RUNTIME_DIR/deskd/deskd.sock)"`
	ShutdownTimeout string `yaml:"shutdown_timeout,omitempty" toml:"shutdown_timeout,omitempty" jsonschema:"description=Graceful shutdown timeout as a Go duration (default: 5s)"`
}

// WatchConfig configures filesystem watch adapters.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms,omitempty" toml:"debounce_ms,omitempty" jsonschema:"description=Coalescing window for filesystem events in milliseconds (default: 100),minimum=0"`
}

// ServicesConfig holds the settings of every service.
type ServicesConfig struct {
	Battery      BatteryConfig      `yaml:"battery,omitempty" toml:"battery,omitempty"`
	Bluetooth    BluetoothConfig    `yaml:"bluetooth,omitempty" toml:"bluetooth,omitempty"`
	Brightness   BrightnessConfig   `yaml:"brightness,omitempty" toml:"brightness,omitempty"`
	Clipboard    ClipboardConfig    `yaml:"clipboard,omitempty" toml:"clipboard,omitempty"`
	Applications ApplicationsConfig `yaml:"applications,omitempty" toml:"applications,omitempty"`
	Audio        AudioConfig        `yaml:"audio,omitempty" toml:"audio,omitempty"`
}

// BatteryConfig configures the UPower battery service.
type BatteryConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"description=Run this service (default: true)"`
	Icons   string `yaml:"icons,omitempty" toml:"icons,omitempty" jsonschema:"description=Icon naming: internal (UPower icon) or ags (battery-level-N),enum=internal,enum=ags"`
}

// BluetoothConfig configures the BlueZ service.
type BluetoothConfig struct {
	Enabled *bool `yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"description=Run this service (default: true)"`
}

// BrightnessConfig configures the backlight service.
type BrightnessConfig struct {
	Enabled      *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"description=Run this service (default: true)"`
	PollInterval string `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty" jsonschema:"description=Additional polling interval as a Go duration; empty disables polling"`
}

// ClipboardConfig configures the cliphist service.
type ClipboardConfig struct {
	Enabled    *bool `yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"description=Run this service (default: true)"`
	MaxEntries int   `yaml:"max_entries,omitempty" toml:"max_entries,omitempty" jsonschema:"description=Number of history entries kept in the snapshot (default: 50),minimum=0"`
}

// ApplicationsConfig configures desktop entry enumeration.
type ApplicationsConfig struct {
	Enabled  *bool    `yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"description=Run this service (default: true)"`
	Launcher string   `yaml:"launcher,omitempty" toml:"launcher,omitempty" jsonschema:"description=Program used to launch desktop files (default: dex)"`
	Exclude  []string `yaml:"exclude,omitempty" toml:"exclude,omitempty" jsonschema:"description=Glob patterns of desktop file paths to skip"`
}

// AudioConfig configures the pactl-backed audio service.
type AudioConfig struct {
	Enabled *bool `yaml:"enabled,omitempty" toml:"enabled,omitempty" jsonschema:"description=Run this service (default: true)"`
}

const (
	defaultDebounceMs      = 100
	defaultMaxEntries      = 50
	defaultLauncher        = "dex"
	defaultIcons           = "internal"
	defaultShutdownTimeout = "5s"
)

// SetDefaults fills in unset fields.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Daemon.ShutdownTimeout == "" {
		c.Daemon.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = defaultDebounceMs
	}
	if c.Services.Battery.Icons == "" {
		c.Services.Battery.Icons = defaultIcons
	}
	if c.Services.Clipboard.MaxEntries == 0 {
		c.Services.Clipboard.MaxEntries = defaultMaxEntries
	}
	if c.Services.Applications.Launcher == "" {
		c.Services.Applications.Launcher = defaultLauncher
	}
}

// Enabled reports whether the named service should run. Unknown names are
// reported as disabled.
func (s ServicesConfig) Enabled(name string) bool {
	var flag *bool
	switch name {
	case "battery":
		flag = s.Battery.Enabled
	case "bluetooth":
		flag = s.Bluetooth.Enabled
	case "brightness":
		flag = s.Brightness.Enabled
	case "clipboard":
		flag = s.Clipboard.Enabled
	case "applications":
		flag = s.Applications.Enabled
	case "audio":
		flag = s.Audio.Enabled
	default:
		return false
	}
	return flag == nil || *flag
}

// Debounce returns the watch debounce window.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// PollEvery returns the brightness polling interval, or zero when disabled.
func (b BrightnessConfig) PollEvery() time.Duration {
	if b.PollInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(b.PollInterval)
	if err != nil {
		return 0
	}
	return d
}

// Timeout returns the graceful shutdown timeout.
func (d DaemonConfig) Timeout() time.Duration {
	t, err := time.ParseDuration(d.ShutdownTimeout)
	if err != nil || t <= 0 {
		return 5 * time.Second
	}
	return t
}

// UnmarshalExtension decodes a top-level extension section (for example
// "logging") into target using its yaml tags.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// Missing sections leave the target zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
