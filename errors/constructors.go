package errors

import (
	stderrors "errors"
	"fmt"
	"os/exec"
)

// ConstructionFailed creates an error for a service whose resource was
// unavailable at startup.
func ConstructionFailed(service string, err error) *DeskError {
	return Wrap(err, ErrCodeConstructionFailed, fmt.Sprintf("service '%s' could not be constructed", service)).
		WithDetail("service", service)
}

// TransportFailed creates an error for a failed read or command against the
// external resource of a service.
func TransportFailed(service, op string, err error) *DeskError {
	return Wrap(err, ErrCodeTransportFailed, fmt.Sprintf("%s: %s failed", service, op)).
		WithDetail("service", service).
		WithDetail("operation", op)
}

// DataInvalid creates an error for a malformed external payload.
func DataInvalid(what string, err error) *DeskError {
	return Wrap(err, ErrCodeDataInvalid, fmt.Sprintf("invalid %s", what)).
		WithDetail("data", what)
}

// ServiceNotFound creates a service not found error
func ServiceNotFound(service string) *DeskError {
	return New(ErrCodeServiceNotFound, fmt.Sprintf("service '%s' not found", service)).
		WithDetail("service", service)
}

// ServiceUnavailable creates an error for a registered service that failed to
// construct and is running without a live resource.
func ServiceUnavailable(service string, cause error) *DeskError {
	return Wrap(cause, ErrCodeServiceUnavailable, fmt.Sprintf("service '%s' is unavailable", service)).
		WithDetail("service", service)
}

// UnknownChannel creates an error for a subscription to a channel the
// service does not publish.
func UnknownChannel(service, channel string) *DeskError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("service '%s' has no channel '%s'", service, channel)).
		WithDetail("service", service).
		WithDetail("channel", channel)
}

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *DeskError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *DeskError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *DeskError {
	if stderrors.Is(err, exec.ErrNotFound) {
		return Wrap(err, ErrCodeCommandNotFound, fmt.Sprintf("command not found: %s", cmd)).
			WithDetail("command", cmd)
	}

	deskErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		deskErr = deskErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return deskErr
}
