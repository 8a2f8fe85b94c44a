package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/deskd/errors"
	"github.com/spf13/cobra"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// HandleFor reports err for cmd. Errors without a deskd code are usage
// mistakes (bad flags, wrong argument count) and get cobra's help hint.
func (h *ErrorHandler) HandleFor(cmd *cobra.Command, err error) error {
	if _, ok := errors.As(err); !ok {
		PrintError(cmd, err)
		return err
	}
	return h.Handle(err)
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	deskErr, _ := errors.As(err)
	detail := func(key string) interface{} {
		if deskErr == nil {
			return nil
		}
		return deskErr.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "❌ Configuration not found: %v\n", detail("path"))
		fmt.Fprintf(h.Out, "Run 'deskd config show' to see the defaults in effect.\n")

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "❌ %s\n", deskErr.Message)
		fmt.Fprintf(h.Out, "Check the file with 'deskd config validate'.\n")

	case errors.ErrCodeServiceNotFound:
		fmt.Fprintf(h.Out, "❌ Service '%v' is not known to the daemon\n", detail("service"))
		fmt.Fprintf(h.Out, "Run 'deskd status' to see available services.\n")

	case errors.ErrCodeServiceUnavailable:
		if detail("service") != nil {
			fmt.Fprintf(h.Out, "❌ Service '%v' is unavailable\n", detail("service"))
			fmt.Fprintf(h.Out, "Check the daemon log with 'deskd logs'.\n")
		} else {
			fmt.Fprintf(h.Out, "❌ %s\n", deskErr.Message)
		}

	case errors.ErrCodeCommandNotFound:
		fmt.Fprintf(h.Out, "❌ Required program '%v' not found. Make sure it is installed and on PATH.\n", detail("command"))

	case errors.ErrCodeInvalidInput:
		fmt.Fprintf(h.Out, "❌ %s\n", deskErr.Message)

	default:
		fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
	}

	if h.Verbose && deskErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", deskErr.ToJSON())
	}
	return err
}
