package composition_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelforge/internal/composition"
	"reelforge/internal/services"
)

const sampleSource = `
import React from "react";
import {interpolate, useCurrentFrame} from "@reelforge/core";

// Render parameters for this animation.
export const config = {
	id: "X",
	durationInSeconds: 5,
	fps: 30,
	width: 1080,
	height: 1920,
};

export default function Scene() {
	const frame = useCurrentFrame();
	const opacity = interpolate(frame, [0, 30], [0, 1]);
	return <div style={{opacity}}>hello</div>;
}
`

func TestExtractSample(t *testing.T) {
	desc, err := composition.Extract(sampleSource)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := composition.Descriptor{ID: "X", DurationInSeconds: 5, FPS: 30, Width: 1080, Height: 1920}
	if desc != want {
		t.Fatalf("unexpected descriptor: got %+v want %+v", desc, want)
	}
	if frames := desc.DurationInFrames(); frames != 150 {
		t.Fatalf("expected 150 frames, got %d", frames)
	}
}

func TestExtractFractionalDuration(t *testing.T) {
	desc, err := composition.Extract(`export const config = {id: "intro", durationInSeconds: 2.5, fps: 24, width: 640, height: 360};`)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if desc.DurationInFrames() != 60 {
		t.Fatalf("expected 60 frames, got %d", desc.DurationInFrames())
	}
}

func TestExtractRoundsFrameCount(t *testing.T) {
	desc, err := composition.Extract(`export const config = {id: "a", durationInSeconds: 0.1, fps: 24, width: 16, height: 16};`)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	// 0.1 * 24 = 2.4 rounds to 2.
	if desc.DurationInFrames() != 2 {
		t.Fatalf("expected 2 frames, got %d", desc.DurationInFrames())
	}
}

func TestExtractTypeAnnotationAndQuotes(t *testing.T) {
	source := `
type RenderConfig = {id: string; durationInSeconds: number; fps: number; width: number; height: number};
export const config: RenderConfig = {
	'id': 'banner',
	"durationInSeconds": 1,
	fps: 60,
	width: 300,
	height: 250,
};
`
	desc, err := composition.Extract(source)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if desc.ID != "banner" || desc.FPS != 60 {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
}

func TestExtractMissingFieldsNameTheField(t *testing.T) {
	full := map[string]string{
		"id":                `"X"`,
		"durationInSeconds": "5",
		"fps":               "30",
		"width":             "1080",
		"height":            "1920",
	}

	for missing := range full {
		t.Run(missing, func(t *testing.T) {
			var sb strings.Builder
			sb.WriteString("export const config = {")
			for key, value := range full {
				if key == missing {
					continue
				}
				sb.WriteString(key + ": " + value + ", ")
			}
			sb.WriteString("};")

			_, err := composition.Extract(sb.String())
			if err == nil {
				t.Fatalf("expected error for missing %s", missing)
			}
			if !errors.Is(err, services.ErrConfigExtraction) {
				t.Fatalf("expected config extraction marker, got %v", err)
			}
			if !strings.Contains(err.Error(), missing) {
				t.Fatalf("expected error to name %q, got %q", missing, err)
			}
		})
	}
}

func TestExtractWrongTypedFields(t *testing.T) {
	cases := []struct {
		name   string
		source string
		field  string
	}{
		{"numeric id", `export const config = {id: 7, durationInSeconds: 5, fps: 30, width: 10, height: 10};`, "id"},
		{"string fps", `export const config = {id: "X", durationInSeconds: 5, fps: "30", width: 10, height: 10};`, "fps"},
		{"fractional width", `export const config = {id: "X", durationInSeconds: 5, fps: 30, width: 10.5, height: 10};`, "width"},
		{"negative height", `export const config = {id: "X", durationInSeconds: 5, fps: 30, width: 10, height: -10};`, "height"},
		{"zero duration", `export const config = {id: "X", durationInSeconds: 0, fps: 30, width: 10, height: 10};`, "durationInSeconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := composition.Extract(tc.source)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrConfigExtraction) {
				t.Fatalf("expected config extraction marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("expected error to name %q, got %q", tc.field, err)
			}
		})
	}
}

func TestExtractRejectsMissingExport(t *testing.T) {
	_, err := composition.Extract(`const config = {id: "X"}; export default config;`)
	if err == nil {
		t.Fatal("expected error for non-exported config")
	}
	if !strings.Contains(err.Error(), "config export not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExtractRejectsNonLiteralConfig(t *testing.T) {
	sources := []string{
		`export const config = buildConfig();`,
		`export const config = {...base, id: "X"};`,
		`export const config = {id: "X", durationInSeconds: total / fps, fps: 30, width: 10, height: 10};`,
		"export const config = {id: `scene-${n}`, durationInSeconds: 5, fps: 30, width: 10, height: 10};",
		`export const config = {id: "X", durationInSeconds: 5, fps: 30, width: 10, height: 10`,
	}
	for _, source := range sources {
		_, err := composition.Extract(source)
		if err == nil {
			t.Fatalf("expected error for %q", source)
		}
		if !errors.Is(err, services.ErrConfigExtraction) {
			t.Fatalf("expected config extraction marker, got %v", err)
		}
	}
}

func TestExtractIgnoresCommentedExport(t *testing.T) {
	source := `
// export const config = {id: "stale"};
/* export const config = {id: "stale-two"}; */
export const config = {id: "live", durationInSeconds: 1, fps: 24, width: 8, height: 8};
`
	desc, err := composition.Extract(source)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if desc.ID != "live" {
		t.Fatalf("expected commented exports to be skipped, got %q", desc.ID)
	}
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.tsx")
	if err := os.WriteFile(path, []byte(sampleSource), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	desc, err := composition.ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile returned error: %v", err)
	}
	if desc.ID != "X" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}

	if _, err := composition.ExtractFile(filepath.Join(t.TempDir(), "missing.tsx")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
