// Package daemon is the client of the deskd daemon socket API. It also
// defines the types exchanged over that API.
package daemon

import (
	"context"
	"encoding/json"
)

// Client talks to a running deskd daemon.
type Client interface {
	// Services reports every service, including ones that failed to start.
	Services(ctx context.Context) ([]ServiceStatus, error)

	// State returns every available snapshot keyed by service name.
	State(ctx context.Context) (map[string]json.RawMessage, error)

	// ServiceState returns one service's snapshot.
	ServiceState(ctx context.Context, service string) (json.RawMessage, error)

	// Config returns the configuration the daemon is running with.
	Config(ctx context.Context) (*RunningConfig, error)

	// Command runs a service command and returns its JSON result, if any.
	Command(ctx context.Context, service, command string, params map[string]any) (json.RawMessage, error)

	// Stream delivers future publishes on channel. An empty service means
	// every service. The channel closes when ctx ends or the daemon goes
	// away.
	Stream(ctx context.Context, service, channel string) (<-chan Event, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}
