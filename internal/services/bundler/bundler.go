// Package bundler wraps the external bundling engine that compiles a staging
// project's entry module into a self-contained bundle the renderer can load.
package bundler

import (
	"bufio"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"reelforge/internal/services"
)

var commandContext = exec.CommandContext

// ProgressUpdate captures bundler progress events. Percent is fractional,
// in [0, 1].
type ProgressUpdate struct {
	Percent float64
	Stage   string
	Message string
}

// Client defines bundling behaviour.
type Client interface {
	// Bundle compiles the entry module into outDir and returns the bundle
	// location. resolveDirs are prepended to the bundler's module search path.
	Bundle(ctx context.Context, entryPath, outDir string, resolveDirs []string, progress func(ProgressUpdate)) (string, error)
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

// CLI wraps the reel-bundler command-line tool.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "reel-bundler"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Bundle launches the bundler and streams its progress. The bundler reports
// JSON lines on stdout; anything else is retained as failure detail.
func (c *CLI) Bundle(ctx context.Context, entryPath, outDir string, resolveDirs []string, progress func(ProgressUpdate)) (string, error) {
	if strings.TrimSpace(entryPath) == "" {
		return "", services.Wrap(services.ErrBundle, "bundling", "bundle", "entry path required", nil)
	}
	if strings.TrimSpace(outDir) == "" {
		return "", services.Wrap(services.ErrBundle, "bundling", "bundle", "output directory required", nil)
	}

	args := []string{"bundle", "--entry", entryPath, "--out-dir", outDir, "--progress-json"}
	for _, dir := range resolveDirs {
		if dir = strings.TrimSpace(dir); dir != "" {
			args = append(args, "--resolve-dir", dir)
		}
	}

	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", services.Wrap(services.ErrBundle, "bundling", "bundle", "stdout pipe", err)
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "bundling", "bundle", "start "+c.binary, err)
	}

	bundleDir := outDir
	var detail []string
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		var payload struct {
			Event   string  `json:"event"`
			Percent float64 `json:"percent"`
			Stage   string  `json:"stage"`
			Message string  `json:"message"`
			Bundle  string  `json:"bundle"`
		}
		if err := json.Unmarshal(line, &payload); err != nil {
			if text := strings.TrimSpace(string(line)); text != "" {
				detail = append(detail, text)
			}
			continue
		}
		if payload.Event == "done" && strings.TrimSpace(payload.Bundle) != "" {
			bundleDir = payload.Bundle
			continue
		}
		if strings.TrimSpace(payload.Message) != "" {
			detail = append(detail, strings.TrimSpace(payload.Message))
		}
		if progress != nil {
			progress(ProgressUpdate{Percent: payload.Percent, Stage: payload.Stage, Message: payload.Message})
		}
	}
	if err := scanner.Err(); err != nil {
		return "", services.Wrap(services.ErrBundle, "bundling", "bundle", "read bundler output", err)
	}

	if err := cmd.Wait(); err != nil {
		return "", services.Wrap(services.ErrBundle, "bundling", "bundle", failureDetail(detail), err)
	}

	return bundleDir, nil
}

// failureDetail keeps the last few output lines so unresolved-module and
// similar messages survive into the translated error.
func failureDetail(lines []string) string {
	const keep = 3
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	if len(lines) == 0 {
		return "bundler failed"
	}
	return strings.Join(lines, "; ")
}

var _ Client = (*CLI)(nil)
