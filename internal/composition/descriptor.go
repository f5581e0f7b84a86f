package composition

import (
	"fmt"
	"math"
	"strings"

	"reelforge/internal/services"
)

// Descriptor holds the render parameters recovered from a source file. It is
// immutable once produced by the extractor.
type Descriptor struct {
	ID                string
	DurationInSeconds float64
	FPS               int
	Width             int
	Height            int
}

// DurationInFrames derives the frame count from duration and frame rate.
func (d Descriptor) DurationInFrames() int {
	return int(math.Round(d.DurationInSeconds * float64(d.FPS)))
}

// Validate checks descriptor invariants, naming the offending field.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fieldError("id", "must be a non-empty string")
	}
	if d.DurationInSeconds <= 0 {
		return fieldError("durationInSeconds", "must be positive")
	}
	if d.FPS <= 0 {
		return fieldError("fps", "must be a positive integer")
	}
	if d.Width <= 0 {
		return fieldError("width", "must be a positive integer")
	}
	if d.Height <= 0 {
		return fieldError("height", "must be a positive integer")
	}
	if d.DurationInFrames() < 1 {
		return fieldError("durationInSeconds", "yields zero frames at the configured fps")
	}
	return nil
}

func fieldError(field, detail string) error {
	return fmt.Errorf("%w: field %q %s", services.ErrConfigExtraction, field, detail)
}

func missingFieldError(field string) error {
	return fmt.Errorf("%w: missing required field %q", services.ErrConfigExtraction, field)
}
