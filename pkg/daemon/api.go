package daemon

import (
	"encoding/json"
	"time"
)

// ServiceStatus describes one service as reported by GET /api/services.
type ServiceStatus struct {
	Name      string        `json:"name"`
	Available bool          `json:"available"`
	State     string        `json:"state"`
	Channels  []string      `json:"channels,omitempty"`
	Commands  []CommandInfo `json:"commands,omitempty"`
	Passes    uint64        `json:"passes"`
	// LastError is set while the latest pass failed.
	LastError string `json:"last_error,omitempty"`
	// Error and ErrorCode are set when construction failed.
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// CommandInfo names a command a service accepts.
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Event is one stream message: the snapshot of service at the time of a
// publish on channel.
type Event struct {
	Service  string          `json:"service"`
	Channel  string          `json:"channel"`
	Snapshot json.RawMessage `json:"snapshot"`
}

// CommandResult is the body of a successful command call.
type CommandResult struct {
	Result json.RawMessage `json:"result,omitempty"`
}

// ErrorBody is the body of every failed API call.
type ErrorBody struct {
	Error APIError `json:"error"`
}

// APIError carries a deskd error code across the socket.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RunningConfig is reported by GET /api/config.
type RunningConfig struct {
	ConfigFile string    `json:"config_file,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Services   []string  `json:"services"`
	// ReloadedAt is set once the configuration file changed on disk.
	// Changes take effect on the next start.
	ReloadedAt     *time.Time `json:"reloaded_at,omitempty"`
	PendingRestart bool       `json:"pending_restart"`
	ReloadError    string     `json:"reload_error,omitempty"`
}
