// Package renderer wraps the headless render engine: it lists the
// compositions a bundle registers, resolves the one a run asked for, and
// drives the frame-by-frame render/encode with streaming progress. The engine
// writes the output file atomically or not at all.
package renderer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"reelforge/internal/services"
)

var commandContext = exec.CommandContext

// Composition is the renderer's handle for a registered composition.
type Composition struct {
	ID               string `json:"id"`
	DurationInFrames int    `json:"durationInFrames"`
	FPS              int    `json:"fps"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
}

// ProgressUpdate captures render progress events. Percent is fractional,
// in [0, 1].
type ProgressUpdate struct {
	Percent float64
	Stage   string
	Frame   int
	Message string
}

// RenderSpec carries everything one render invocation needs. The descriptor's
// dimensions, frame rate, and frame count override whatever the bundle
// registered, so the output always matches the extracted config.
type RenderSpec struct {
	BundleDir        string
	CompositionID    string
	OutputPath       string
	DurationInFrames int
	FPS              int
	Width            int
	Height           int
	// BrowserBinary points the engine at the provisioned headless browser.
	BrowserBinary string
}

// Client defines render engine behaviour.
type Client interface {
	Select(ctx context.Context, bundleDir, id string) (Composition, error)
	Render(ctx context.Context, spec RenderSpec, progress func(ProgressUpdate)) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the reel-renderer command-line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "reel-renderer"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Select lists the bundle's compositions and resolves id.
func (c *CLI) Select(ctx context.Context, bundleDir, id string) (Composition, error) {
	if strings.TrimSpace(bundleDir) == "" {
		return Composition{}, services.Wrap(services.ErrRender, "selecting", "compositions", "bundle location required", nil)
	}

	cmd := commandContext(ctx, c.binary, "compositions", "--bundle", bundleDir, "--json") //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		message := "list bundle compositions"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if stderr := lastLines(string(exitErr.Stderr), 3); stderr != "" {
				message = stderr
			}
		}
		return Composition{}, services.Wrap(services.ErrRender, "selecting", "compositions", message, err)
	}

	var compositions []Composition
	if err := json.Unmarshal(output, &compositions); err != nil {
		return Composition{}, services.Wrap(services.ErrRender, "selecting", "compositions", "parse composition listing", err)
	}

	for _, comp := range compositions {
		if comp.ID == id {
			return comp, nil
		}
	}
	return Composition{}, services.Wrap(services.ErrCompositionNotFound, "selecting", "",
		fmt.Sprintf("composition %q not found in bundle (available: %s)", id, compositionIDs(compositions)), nil)
}

// Render invokes the engine with explicit dimensions, frame rate, and frame
// count, streaming JSON progress lines from stdout.
func (c *CLI) Render(ctx context.Context, spec RenderSpec, progress func(ProgressUpdate)) error {
	if strings.TrimSpace(spec.BundleDir) == "" || strings.TrimSpace(spec.CompositionID) == "" {
		return services.Wrap(services.ErrRender, "rendering", "render", "bundle location and composition id required", nil)
	}
	if strings.TrimSpace(spec.OutputPath) == "" {
		return services.Wrap(services.ErrRender, "rendering", "render", "output path required", nil)
	}

	args := []string{
		"render",
		"--bundle", spec.BundleDir,
		"--composition", spec.CompositionID,
		"--frames", strconv.Itoa(spec.DurationInFrames),
		"--fps", strconv.Itoa(spec.FPS),
		"--width", strconv.Itoa(spec.Width),
		"--height", strconv.Itoa(spec.Height),
		"--output", spec.OutputPath,
		"--progress-json",
	}
	if spec.BrowserBinary != "" {
		args = append(args, "--browser", spec.BrowserBinary)
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrRender, "rendering", "render", "stdout pipe", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "rendering", "render", "start "+c.binary, err)
	}

	var detail []string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		var payload struct {
			Percent float64 `json:"percent"`
			Stage   string  `json:"stage"`
			Frame   int     `json:"frame"`
			Message string  `json:"message"`
		}
		if err := json.Unmarshal(line, &payload); err != nil {
			if text := strings.TrimSpace(string(line)); text != "" {
				detail = append(detail, text)
			}
			continue
		}
		if strings.TrimSpace(payload.Message) != "" {
			detail = append(detail, strings.TrimSpace(payload.Message))
		}
		if progress != nil {
			progress(ProgressUpdate{Percent: payload.Percent, Stage: payload.Stage, Frame: payload.Frame, Message: payload.Message})
		}
	}
	if err := scanner.Err(); err != nil {
		return services.Wrap(services.ErrRender, "rendering", "render", "read renderer output", err)
	}

	if err := cmd.Wait(); err != nil {
		message := "renderer failed"
		if len(detail) > 0 {
			const keep = 3
			if len(detail) > keep {
				detail = detail[len(detail)-keep:]
			}
			message = strings.Join(detail, "; ")
		}
		return services.Wrap(services.ErrRender, "rendering", "render", message, err)
	}
	return nil
}

// lastLines returns the trailing non-empty lines of text joined with "; ".
func lastLines(text string, keep int) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.Join(lines, "; ")
}

func compositionIDs(compositions []Composition) string {
	if len(compositions) == 0 {
		return "none"
	}
	ids := make([]string, 0, len(compositions))
	for _, comp := range compositions {
		ids = append(ids, comp.ID)
	}
	return strings.Join(ids, ", ")
}

var _ Client = (*CLI)(nil)
