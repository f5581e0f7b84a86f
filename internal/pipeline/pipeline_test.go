package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reelforge/internal/composition"
	"reelforge/internal/config"
	"reelforge/internal/logging"
	"reelforge/internal/services"
	"reelforge/internal/services/browser"
	"reelforge/internal/services/bundler"
	"reelforge/internal/services/renderer"
	"reelforge/internal/testsupport"
)

const sampleAnimation = `import { Series } from "@reelforge/core";

export const config = {
	id: "intro",
	durationInSeconds: 5,
	fps: 30,
	width: 1080,
	height: 1920,
};

export default function Intro() {
	return null;
}
`

type fakeBundler struct {
	err        error
	gotEntry   string
	gotOutDir  string
	gotResolve []string
	calls      int
}

func (f *fakeBundler) Bundle(ctx context.Context, entryPath, outDir string, resolveDirs []string, progress func(bundler.ProgressUpdate)) (string, error) {
	f.calls++
	f.gotEntry = entryPath
	f.gotOutDir = outDir
	f.gotResolve = resolveDirs
	if f.err != nil {
		return "", f.err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	if progress != nil {
		progress(bundler.ProgressUpdate{Percent: 0.5, Stage: "transform"})
		progress(bundler.ProgressUpdate{Percent: 1, Stage: "write"})
	}
	return outDir, nil
}

type fakeRenderer struct {
	selectErr error
	renderErr error
	gotSpec   renderer.RenderSpec
	gotID     string
}

func (f *fakeRenderer) Select(ctx context.Context, bundleDir, id string) (renderer.Composition, error) {
	f.gotID = id
	if f.selectErr != nil {
		return renderer.Composition{}, f.selectErr
	}
	return renderer.Composition{ID: id, DurationInFrames: 150, FPS: 30, Width: 1080, Height: 1920}, nil
}

func (f *fakeRenderer) Render(ctx context.Context, spec renderer.RenderSpec, progress func(renderer.ProgressUpdate)) error {
	f.gotSpec = spec
	if f.renderErr != nil {
		return f.renderErr
	}
	if progress != nil {
		progress(renderer.ProgressUpdate{Percent: 0.5, Stage: "frames", Frame: 75})
		progress(renderer.ProgressUpdate{Percent: 1, Stage: "encode"})
	}
	return os.WriteFile(spec.OutputPath, []byte("video"), 0o644)
}

type fakeBrowser struct {
	path string
	err  error
}

func (f *fakeBrowser) EnsureAvailable(ctx context.Context, progress func(browser.ProgressUpdate)) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

type fixture struct {
	orch     *Orchestrator
	cfg      *config.Config
	bundler  *fakeBundler
	renderer *fakeRenderer
	input    string
	output   string
	events   *[]ProgressEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	dir := testsupport.BaseDir(cfg)

	input := filepath.Join(dir, "intro.tsx")
	testsupport.WriteFile(t, input, sampleAnimation)

	fb := &fakeBundler{}
	fr := &fakeRenderer{}
	events := &[]ProgressEvent{}

	orch, err := New(Options{
		Config:   cfg,
		Bundler:  fb,
		Renderer: fr,
		Browser:  &fakeBrowser{path: "/opt/runtime/headless-chromium"},
		Logger:   logging.NewNop(),
		Progress: func(e ProgressEvent) { *events = append(*events, e) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &fixture{
		orch:     orch,
		cfg:      cfg,
		bundler:  fb,
		renderer: fr,
		input:    input,
		output:   filepath.Join(dir, "out", "intro.mp4"),
		events:   events,
	}
}

func (f *fixture) stagingEntries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(f.cfg.Paths.StagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read staging dir: %v", err)
	}
	return entries
}

func TestExecuteSuccess(t *testing.T) {
	f := newFixture(t)

	result, err := f.orch.Execute(context.Background(), Request{InputPath: f.input, OutputPath: f.output})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RunID == "" {
		t.Fatal("expected run ID")
	}
	if result.OutputPath != f.output {
		t.Fatalf("output = %q, want %q", result.OutputPath, f.output)
	}
	want := composition.Descriptor{ID: "intro", DurationInSeconds: 5, FPS: 30, Width: 1080, Height: 1920}
	if diff := cmp.Diff(want, result.Descriptor); diff != "" {
		t.Fatalf("descriptor mismatch (-want +got):\n%s", diff)
	}

	spec := f.renderer.gotSpec
	if spec.DurationInFrames != 150 {
		t.Fatalf("frames = %d, want 150", spec.DurationInFrames)
	}
	if spec.CompositionID != "intro" {
		t.Fatalf("composition = %q, want intro", spec.CompositionID)
	}
	if spec.BrowserBinary != "/opt/runtime/headless-chromium" {
		t.Fatalf("browser = %q", spec.BrowserBinary)
	}
	if filepath.Base(f.bundler.gotEntry) != "index.tsx" {
		t.Fatalf("entry = %q", f.bundler.gotEntry)
	}

	if entries := f.stagingEntries(t); len(entries) != 0 {
		t.Fatalf("staging dir not released, %d entries remain", len(entries))
	}
	if _, err := os.Stat(f.output); err != nil {
		t.Fatalf("output not written: %v", err)
	}
}

func TestExecuteProgressMonotonic(t *testing.T) {
	f := newFixture(t)
	if _, err := f.orch.Execute(context.Background(), Request{InputPath: f.input, OutputPath: f.output}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	events := *f.events
	if len(events) == 0 {
		t.Fatal("expected progress events")
	}
	last := 0.0
	for i, e := range events {
		if e.Percent < last {
			t.Fatalf("event %d (%s) percent %v decreased below %v", i, e.Phase, e.Percent, last)
		}
		last = e.Percent
	}
	if last != 1 {
		t.Fatalf("final percent = %v, want 1", last)
	}
}

func TestExecuteRejectsWrongExtension(t *testing.T) {
	f := newFixture(t)
	badInput := filepath.Join(t.TempDir(), "intro.ts")
	if err := os.WriteFile(badInput, []byte(sampleAnimation), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	_, err := f.orch.Execute(context.Background(), Request{InputPath: badInput, OutputPath: f.output})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestExecuteRejectsMissingInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Execute(context.Background(), Request{
		InputPath:  filepath.Join(t.TempDir(), "absent.tsx"),
		OutputPath: f.output,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestExecuteOverwriteGuard(t *testing.T) {
	f := newFixture(t)
	if err := os.MkdirAll(filepath.Dir(f.output), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(f.output, []byte("old"), 0o644); err != nil {
		t.Fatalf("write existing output: %v", err)
	}

	_, err := f.orch.Execute(context.Background(), Request{InputPath: f.input, OutputPath: f.output})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation without overwrite, got %v", err)
	}

	if _, err := f.orch.Execute(context.Background(), Request{InputPath: f.input, OutputPath: f.output, Overwrite: true}); err != nil {
		t.Fatalf("Execute with overwrite: %v", err)
	}
	data, err := os.ReadFile(f.output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "video" {
		t.Fatalf("output = %q, want replaced content", data)
	}
}

func TestExecuteFailureLogsRunContext(t *testing.T) {
	f := newFixture(t)
	f.bundler.err = services.Wrap(services.ErrBundle, "bundling", "compile", "transform failed", nil)

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	f.orch.logger = logging.NewComponentLogger(logger, "pipeline")

	if _, err := f.orch.Execute(context.Background(), Request{InputPath: f.input, OutputPath: f.output}); err == nil {
		t.Fatal("expected bundle failure")
	}

	out := buf.String()
	if !strings.Contains(out, "render run failed") {
		t.Fatalf("expected failure record, got:\n%s", out)
	}
	if !strings.Contains(out, "run_id=") || !strings.Contains(out, "phase=bundling") {
		t.Fatalf("expected run context fields on failure record, got:\n%s", out)
	}
}

func TestExecuteBundleFailureReleasesStaging(t *testing.T) {
	f := newFixture(t)
	f.bundler.err = services.Wrap(services.ErrBundle, "bundling", "bundle", "transform failed", nil)

	_, err := f.orch.Execute(context.Background(), Request{InputPath: f.input, OutputPath: f.output})
	if !errors.Is(err, services.ErrBundle) {
		t.Fatalf("expected ErrBundle, got %v", err)
	}
	if entries := f.stagingEntries(t); len(entries) != 0 {
		t.Fatalf("staging dir not released after failure, %d entries remain", len(entries))
	}
}

func TestExecuteCompositionNotFound(t *testing.T) {
	f := newFixture(t)
	f.renderer.selectErr = services.Wrap(services.ErrCompositionNotFound, "selecting", "select", "no composition intro", nil)

	_, err := f.orch.Execute(context.Background(), Request{InputPath: f.input, OutputPath: f.output})
	if !errors.Is(err, services.ErrCompositionNotFound) {
		t.Fatalf("expected ErrCompositionNotFound, got %v", err)
	}
	if entries := f.stagingEntries(t); len(entries) != 0 {
		t.Fatalf("staging dir not released, %d entries remain", len(entries))
	}
}

func TestExecuteBrowserFailureBeforeBundle(t *testing.T) {
	f := newFixture(t)
	orch, err := New(Options{
		Config:   f.cfg,
		Bundler:  f.bundler,
		Renderer: f.renderer,
		Browser:  &fakeBrowser{err: services.Wrap(services.ErrExternalTool, "provisioning", "browser", "runtime missing", nil)},
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = orch.Execute(context.Background(), Request{InputPath: f.input, OutputPath: f.output})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if f.bundler.calls != 0 {
		t.Fatalf("bundler ran %d times despite missing browser", f.bundler.calls)
	}
}

func TestExecuteExtractionFailure(t *testing.T) {
	f := newFixture(t)
	badInput := filepath.Join(t.TempDir(), "broken.tsx")
	if err := os.WriteFile(badInput, []byte("export default function X() {}\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	_, err := f.orch.Execute(context.Background(), Request{InputPath: badInput, OutputPath: f.output})
	if !errors.Is(err, services.ErrConfigExtraction) {
		t.Fatalf("expected ErrConfigExtraction, got %v", err)
	}
}
