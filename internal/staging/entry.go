package staging

import (
	"strings"
	"text/template"

	"reelforge/internal/composition"
)

// entryTemplate wires the user's default export into a named composition the
// bundler and renderer can address by ID. The import uses the absolute source
// path so the project builds in isolation from the user's working tree.
const entryTemplate = `// Generated by reelforge. Do not edit.
import React from "react";
import {Composition, registerRoot} from "@reelforge/core";
import Scene from {{printf "%q" .InputPath}};

const Root: React.FC = () => {
	return (
		<Composition
			id={{printf "%q" .ID}}
			component={Scene}
			durationInFrames={ {{- .DurationInFrames -}} }
			fps={ {{- .FPS -}} }
			width={ {{- .Width -}} }
			height={ {{- .Height -}} }
		/>
	);
};

registerRoot(Root);
`

var entryTmpl = template.Must(template.New("entry").Parse(entryTemplate))

type entryData struct {
	InputPath        string
	ID               string
	DurationInFrames int
	FPS              int
	Width            int
	Height           int
}

func renderEntryModule(inputPath string, desc composition.Descriptor) (string, error) {
	var sb strings.Builder
	err := entryTmpl.Execute(&sb, entryData{
		InputPath:        inputPath,
		ID:               desc.ID,
		DurationInFrames: desc.DurationInFrames(),
		FPS:              desc.FPS,
		Width:            desc.Width,
		Height:           desc.Height,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
