package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Service lifecycle errors
	ErrCodeConstructionFailed ErrorCode = "CONSTRUCTION_FAILED"
	ErrCodeTransportFailed    ErrorCode = "TRANSPORT_FAILED"
	ErrCodeDataInvalid        ErrorCode = "DATA_INVALID"
	ErrCodeServiceNotFound    ErrorCode = "SERVICE_NOT_FOUND"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Command execution errors
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   ErrorCode = "COMMAND_FAILED"

	// General errors
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// DeskError represents a structured error with context
type DeskError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *DeskError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *DeskError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *DeskError) WithDetail(key string, value interface{}) *DeskError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *DeskError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new DeskError
func New(code ErrorCode, message string) *DeskError {
	return &DeskError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a DeskError
func Wrap(err error, code ErrorCode, message string) *DeskError {
	return &DeskError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Is checks if an error is a specific DeskError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	deskErr, ok := err.(*DeskError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	if deskErr.Code == code {
		return true
	}
	return deskErr.Cause != nil && Is(deskErr.Cause, code)
}

// GetCode extracts the outermost error code from an error
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}

	deskErr, ok := err.(*DeskError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return GetCode(unwrapper.Unwrap())
		}
		return ""
	}

	return deskErr.Code
}

// As returns the first DeskError in the chain, if any.
func As(err error) (*DeskError, bool) {
	for err != nil {
		if deskErr, ok := err.(*DeskError); ok {
			return deskErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}
