package errors

import (
	"fmt"
	"os/exec"
	"testing"
)

func TestDeskError(t *testing.T) {
	// Test basic error creation
	err := New(ErrCodeServiceNotFound, "service not found")
	if err.Code != ErrCodeServiceNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeServiceNotFound, err.Code)
	}

	// Test error wrapping
	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodeCommandFailed, "command failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	// Test Is function
	if !Is(wrapped, ErrCodeCommandFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeServiceNotFound) {
		t.Error("Is should return false for non-matching code")
	}

	// Test WithDetail
	detailed := err.WithDetail("service", "battery").WithDetail("channel", "percent")
	if detailed.Details["service"] != "battery" {
		t.Error("WithDetail should add details")
	}
}

func TestIsFindsNestedCodes(t *testing.T) {
	data := DataInvalid("brightness output", fmt.Errorf("not a number"))
	construction := ConstructionFailed("brightness", data)
	outer := fmt.Errorf("startup: %w", construction)

	if !Is(outer, ErrCodeConstructionFailed) {
		t.Error("Is should see through fmt wrapping")
	}
	if !Is(outer, ErrCodeDataInvalid) {
		t.Error("Is should find codes in the DeskError cause chain")
	}
	if GetCode(outer) != ErrCodeConstructionFailed {
		t.Errorf("GetCode should return the outermost code, got %s", GetCode(outer))
	}

	found, ok := As(outer)
	if !ok || found.Details["service"] != "brightness" {
		t.Error("As should return the first DeskError in the chain")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := ServiceNotFound("battery")
	if err.Code != ErrCodeServiceNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeServiceNotFound, err.Code)
	}
	if err.Details["service"] != "battery" {
		t.Error("ServiceNotFound should include service detail")
	}

	err = TransportFailed("bluetooth", "list devices", fmt.Errorf("bus closed"))
	if err.Code != ErrCodeTransportFailed {
		t.Errorf("expected code %s, got %s", ErrCodeTransportFailed, err.Code)
	}
	if err.Details["operation"] != "list devices" {
		t.Error("TransportFailed should include operation detail")
	}

	err = UnknownChannel("battery", "volume")
	if err.Code != ErrCodeInvalidInput {
		t.Errorf("expected code %s, got %s", ErrCodeInvalidInput, err.Code)
	}

	err = CommandFailed("brightnessctl", exec.ErrNotFound)
	if err.Code != ErrCodeCommandNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeCommandNotFound, err.Code)
	}
}
