package command

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/grovetools/deskd/errors"
)

var (
	macAddressPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
	sinkNamePattern   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]*$`)
	clipIDPattern     = regexp.MustCompile(`^[0-9]+$`)
)

var validators = map[string]func(string) error{
	"macAddress":  validateMACAddress,
	"sinkName":    validateSinkName,
	"desktopFile": validateDesktopFile,
	"clipID":      validateClipID,
	"percent":     validatePercent,
}

// Validate checks a user supplied argument before it reaches a helper
// program. argType is one of macAddress, sinkName, desktopFile, clipID or
// percent. Rejections carry INVALID_INPUT.
func Validate(argType, value string) error {
	validator, ok := validators[argType]
	if !ok {
		return errors.New(errors.ErrCodeInternal, "no validator for argument type: "+argType)
	}
	if err := validator(value); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, err.Error()).WithDetail("type", argType)
	}
	return nil
}

func validateMACAddress(addr string) error {
	if !macAddressPattern.MatchString(addr) {
		return fmt.Errorf("invalid device address: %q", addr)
	}
	return nil
}

func validateSinkName(name string) error {
	if !sinkNamePattern.MatchString(name) {
		return fmt.Errorf("invalid sink name: %q", name)
	}
	return nil
}

func validateDesktopFile(path string) error {
	if path == "" {
		return fmt.Errorf("desktop file path cannot be empty")
	}
	if !filepath.IsAbs(path) || filepath.Clean(path) != path {
		return fmt.Errorf("desktop file path must be absolute and clean: %q", path)
	}
	if !strings.HasSuffix(path, ".desktop") {
		return fmt.Errorf("not a desktop file: %q", path)
	}
	return nil
}

func validateClipID(id string) error {
	if !clipIDPattern.MatchString(id) {
		return fmt.Errorf("invalid clipboard entry id: %q", id)
	}
	return nil
}

func validatePercent(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n > 100 {
		return fmt.Errorf("percent must be an integer between 0 and 100, got %q", value)
	}
	return nil
}
