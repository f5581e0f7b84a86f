// Package pipeline coordinates one render run end to end: validate the
// input, extract the composition descriptor, stage a disposable build
// project, bundle it, select the composition inside the bundle, and render
// the final video. Each run owns exactly one staging directory and releases
// it no matter how the run ends.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelforge/internal/composition"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/services"
	"reelforge/internal/services/browser"
	"reelforge/internal/services/bundler"
	"reelforge/internal/services/renderer"
	"reelforge/internal/staging"
)

// BrowserProvisioner supplies a usable browser runtime before bundling starts.
type BrowserProvisioner interface {
	EnsureAvailable(ctx context.Context, progress func(browser.ProgressUpdate)) (string, error)
}

// Request describes one render run.
type Request struct {
	// InputPath is the user's animation source file.
	InputPath string
	// OutputPath is where the finished video lands.
	OutputPath string
	// Overwrite permits replacing an existing file at OutputPath.
	Overwrite bool
}

// Result reports a completed run.
type Result struct {
	RunID       string
	InputPath   string
	OutputPath  string
	Descriptor  composition.Descriptor
	Composition renderer.Composition
	Elapsed     time.Duration
}

// Orchestrator drives render runs against the configured collaborators.
type Orchestrator struct {
	cfg      *config.Config
	bundler  bundler.Client
	renderer renderer.Client
	browser  BrowserProvisioner
	logger   *slog.Logger
	progress func(ProgressEvent)
}

// Options configures an Orchestrator. Bundler, Renderer, and Browser default
// to the CLI collaborators named in the configuration.
type Options struct {
	Config   *config.Config
	Bundler  bundler.Client
	Renderer renderer.Client
	Browser  BrowserProvisioner
	Logger   *slog.Logger
	// Progress receives overall progress events. May be nil.
	Progress func(ProgressEvent)
}

// New constructs an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, services.Wrap(services.ErrConfiguration, "setup", "pipeline", "configuration required", nil)
	}
	cfg := opts.Config

	b := opts.Bundler
	if b == nil {
		b = bundler.NewCLI(bundler.WithBinary(cfg.Bundler.Binary))
	}
	r := opts.Renderer
	if r == nil {
		r = renderer.NewCLI(renderer.WithBinary(cfg.Renderer.Binary))
	}
	prov := opts.Browser
	if prov == nil {
		prov = browser.New(browser.Options{
			Binary:       cfg.Browser.Binary,
			CacheDir:     cfg.Paths.CacheDir,
			AutoDownload: cfg.Browser.AutoDownload,
			DownloadURL:  cfg.Browser.DownloadURL,
			Timeout:      time.Duration(cfg.Browser.DownloadTimeoutSeconds) * time.Second,
			Logger:       opts.Logger,
		})
	}

	return &Orchestrator{
		cfg:      cfg,
		bundler:  b,
		renderer: r,
		browser:  prov,
		logger:   logging.NewComponentLogger(opts.Logger, "pipeline"),
		progress: opts.Progress,
	}, nil
}

// Execute runs the pipeline for one request. The staging directory created
// for the run is always released before Execute returns, on success and on
// every failure path alike.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := o.logger.With(logging.FieldRunID, runID)
	tracker := newProgressTracker(o.progress)
	started := time.Now()

	run := &run{phase: PhasePending}

	enter := func(phase Phase) error {
		if err := run.to(phase); err != nil {
			return err
		}
		ctx = logging.WithPhase(ctx, string(phase))
		tracker.enter(phase)
		return nil
	}

	// The context carries the run id and current phase, so failure records
	// pick both up without threading them through every call site.
	fail := func(err error) (*Result, error) {
		_ = run.to(PhaseFailed)
		logging.WithContext(ctx, o.logger).Error("render run failed", logging.Error(err))
		return nil, err
	}

	// Validate.
	if err := enter(PhaseValidating); err != nil {
		return nil, err
	}
	inputPath, outputPath, err := o.validate(req)
	if err != nil {
		return fail(err)
	}
	logger.Info("render run started",
		logging.String("input", inputPath),
		logging.String("output", outputPath),
	)

	// Extract the composition descriptor without executing user code.
	if err := enter(PhaseExtracting); err != nil {
		return nil, err
	}
	desc, err := composition.ExtractFile(inputPath)
	if err != nil {
		return fail(err)
	}
	logger.Info("composition descriptor extracted",
		logging.String("composition", desc.ID),
		logging.Int("frames", desc.DurationInFrames()),
		logging.Int("fps", desc.FPS),
	)

	// Stage a disposable project around the input.
	if err := enter(PhaseStaging); err != nil {
		return nil, err
	}
	project, err := staging.Create(staging.CreateOptions{
		StagingRoot:  o.cfg.Paths.StagingDir,
		InputPath:    inputPath,
		Descriptor:   desc,
		MinFreeBytes: int64(o.cfg.Staging.MinFreeGiB) * 1024 * 1024 * 1024,
		Logger:       logger,
	})
	if err != nil {
		return fail(err)
	}
	defer project.Release()

	// Bundle. The browser runtime is provisioned first so a missing runtime
	// fails the run before any expensive bundling work happens.
	if err := enter(PhaseBundling); err != nil {
		return nil, err
	}
	browserPath, err := o.browser.EnsureAvailable(ctx, func(u browser.ProgressUpdate) {
		fraction := u.Percent
		if fraction < 0 {
			fraction = 0
		}
		// Provisioning occupies the first tenth of the bundling window.
		tracker.update(PhaseBundling, fraction*0.1, "provisioning browser",
			fmt.Sprintf("%d bytes", u.BytesDownloaded))
	})
	if err != nil {
		return fail(err)
	}

	bundleDir, err := o.bundle(ctx, project, tracker)
	if err != nil {
		return fail(err)
	}
	logger.Info("bundle built", logging.String("bundle", bundleDir))

	// Select the composition inside the bundle.
	if err := enter(PhaseSelecting); err != nil {
		return nil, err
	}
	comp, err := o.renderer.Select(ctx, bundleDir, desc.ID)
	if err != nil {
		return fail(err)
	}

	// Render. The extracted descriptor is authoritative for the render
	// parameters; the bundle's registration only proves the ID exists.
	if err := enter(PhaseRendering); err != nil {
		return nil, err
	}
	if err := o.render(ctx, bundleDir, desc, outputPath, browserPath, tracker); err != nil {
		return fail(err)
	}

	if err := run.to(PhaseDone); err != nil {
		return nil, err
	}
	tracker.finish()
	elapsed := time.Since(started)
	logger.Info("render run complete",
		logging.String("output", outputPath),
		logging.Duration("elapsed", elapsed),
	)

	return &Result{
		RunID:       runID,
		InputPath:   inputPath,
		OutputPath:  outputPath,
		Descriptor:  desc,
		Composition: comp,
		Elapsed:     elapsed,
	}, nil
}

// validate normalizes and checks the request paths.
func (o *Orchestrator) validate(req Request) (string, string, error) {
	input := strings.TrimSpace(req.InputPath)
	if input == "" {
		return "", "", services.Wrap(services.ErrValidation, "validating", "input", "input path required", nil)
	}
	inputPath, err := filepath.Abs(input)
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "validating", "input", "resolve input path", err)
	}
	if ext := strings.ToLower(filepath.Ext(inputPath)); ext != ".tsx" {
		return "", "", services.Wrap(services.ErrValidation, "validating", "input",
			fmt.Sprintf("input must be a .tsx file, got %q", filepath.Base(inputPath)), nil)
	}
	info, err := os.Stat(inputPath)
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "validating", "input",
			fmt.Sprintf("input file %s not found", inputPath), err)
	}
	if info.IsDir() {
		return "", "", services.Wrap(services.ErrValidation, "validating", "input",
			fmt.Sprintf("input %s is a directory", inputPath), nil)
	}

	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		return "", "", services.Wrap(services.ErrValidation, "validating", "output", "output path required", nil)
	}
	outputPath, err := filepath.Abs(output)
	if err != nil {
		return "", "", services.Wrap(services.ErrValidation, "validating", "output", "resolve output path", err)
	}
	if _, err := os.Stat(outputPath); err == nil && !req.Overwrite {
		return "", "", services.Wrap(services.ErrValidation, "validating", "output",
			fmt.Sprintf("output file %s already exists (use --overwrite to replace it)", outputPath), nil)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", "", services.Wrap(services.ErrValidation, "validating", "output", "create output directory", err)
	}
	return inputPath, outputPath, nil
}

func (o *Orchestrator) bundle(ctx context.Context, project *staging.Project, tracker *progressTracker) (string, error) {
	if o.cfg.Bundler.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.Bundler.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	outDir := filepath.Join(project.Root, "bundle")
	return o.bundler.Bundle(ctx, project.EntryPath, outDir, o.cfg.Bundler.ResolveDirs, func(u bundler.ProgressUpdate) {
		// Bundler progress lands after the provisioning slice.
		tracker.update(PhaseBundling, 0.1+u.Percent*0.9, u.Stage, u.Message)
	})
}

func (o *Orchestrator) render(ctx context.Context, bundleDir string, desc composition.Descriptor, outputPath, browserPath string, tracker *progressTracker) error {
	if o.cfg.Renderer.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.Renderer.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	spec := renderer.RenderSpec{
		BundleDir:        bundleDir,
		CompositionID:    desc.ID,
		OutputPath:       outputPath,
		DurationInFrames: desc.DurationInFrames(),
		FPS:              desc.FPS,
		Width:            desc.Width,
		Height:           desc.Height,
		BrowserBinary:    browserPath,
	}
	return o.renderer.Render(ctx, spec, func(u renderer.ProgressUpdate) {
		tracker.update(PhaseRendering, u.Percent, u.Stage, u.Message)
	})
}

// run tracks the phase of one execution.
type run struct {
	phase Phase
}

func (r *run) to(target Phase) error {
	if err := advance(r.phase, target); err != nil {
		return services.Wrap(services.ErrValidation, string(r.phase), "transition", err.Error(), nil)
	}
	r.phase = target
	return nil
}
