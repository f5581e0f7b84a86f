package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks bad or missing input before any resource exists.
	ErrValidation = errors.New("validation error")
	// ErrConfigExtraction marks a missing or malformed composition config.
	ErrConfigExtraction = errors.New("config extraction error")
	// ErrStaging marks a filesystem failure while materializing the build project.
	ErrStaging = errors.New("staging error")
	// ErrCompositionNotFound marks a bundle that lacks the requested composition.
	ErrCompositionNotFound = errors.New("composition not found")
	// ErrBundle marks an opaque bundler collaborator failure.
	ErrBundle = errors.New("bundle error")
	// ErrRender marks an opaque renderer collaborator failure.
	ErrRender = errors.New("render error")
	// ErrExternalTool marks a collaborator binary that is missing or broken.
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration marks an invalid reelforge configuration file.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether err carries any of the pipeline sentinel markers.
// Errors without a marker are still treated as fatal by the orchestrator;
// this only distinguishes classified failures for reporting.
func Fatal(err error) bool {
	for _, marker := range []error{
		ErrValidation, ErrConfigExtraction, ErrStaging,
		ErrCompositionNotFound, ErrBundle, ErrRender,
		ErrExternalTool, ErrConfiguration,
	} {
		if errors.Is(err, marker) {
			return true
		}
	}
	return false
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
