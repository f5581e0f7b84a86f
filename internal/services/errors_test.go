package services_test

import (
	"errors"
	"strings"
	"testing"

	"reelforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrBundle, "bundling", "compile", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrBundle) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"bundling", "compile", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToExternalTool(t *testing.T) {
	err := services.Wrap(nil, "rendering", "encode", "", nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestFatalDetectsMarkers(t *testing.T) {
	if !services.Fatal(services.Wrap(services.ErrValidation, "validating", "", "bad input", nil)) {
		t.Fatal("expected validation error to be fatal")
	}
	if services.Fatal(errors.New("unclassified")) {
		t.Fatal("expected unclassified error to report false")
	}
	if services.Fatal(nil) {
		t.Fatal("expected nil to report false")
	}
}
