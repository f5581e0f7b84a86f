package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"reelforge/internal/diagnose"
	"reelforge/internal/logging"
	"reelforge/internal/pipeline"
	"reelforge/internal/services"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var inputFlag string
	var outputFlag string
	var overwrite bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "render [input]",
		Short: "Render an animation source file to video",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			input := strings.TrimSpace(inputFlag)
			if len(args) > 0 {
				if input != "" && input != strings.TrimSpace(args[0]) {
					return fmt.Errorf("input given both as argument %q and --input %q", args[0], input)
				}
				input = strings.TrimSpace(args[0])
			}
			if input == "" {
				return fmt.Errorf("input file required (positional argument or --input)")
			}

			output := strings.TrimSpace(outputFlag)
			if output == "" {
				output = defaultOutputPath(input, cfg.Renderer.Container, time.Now())
			}

			reporter := newProgressReporter(cmd.ErrOrStderr(), logger)
			defer reporter.stop()

			orch, err := pipeline.New(pipeline.Options{
				Config:   cfg,
				Logger:   logger,
				Progress: reporter.update,
			})
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := orch.Execute(runCtx, pipeline.Request{
				InputPath:  input,
				OutputPath: output,
				Overwrite:  overwrite,
			})
			if err != nil {
				reporter.stop()
				// Only classified pipeline failures get translated; cancellation
				// and internal errors pass through untouched.
				if services.Fatal(err) {
					return &diagnosedError{report: diagnose.Translate(err, verbose), err: err}
				}
				return err
			}
			reporter.stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rendered %s (%d frames at %d fps) in %s\n",
				result.Descriptor.ID,
				result.Descriptor.DurationInFrames(),
				result.Descriptor.FPS,
				result.Elapsed.Round(time.Millisecond),
			)
			fmt.Fprintf(out, "Output: %s\n", result.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Animation source file (.tsx)")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output video path")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace the output file if it already exists")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include the full error chain in failure reports")
	return cmd
}

// defaultOutputPath derives the output location next to the input file. The
// timestamp keeps repeated runs from colliding; RFC 3339 punctuation is
// replaced because colons are hostile to most video tooling.
func defaultOutputPath(inputPath, container string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format(time.RFC3339))
	return filepath.Join(filepath.Dir(inputPath), fmt.Sprintf("%s_%s.%s", base, stamp, container))
}

// diagnosedError carries the user-facing failure report while preserving the
// underlying error chain for exit handling.
type diagnosedError struct {
	report diagnose.Report
	err    error
}

func (e *diagnosedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.report.Category, e.report.Message)
	if e.report.Detail != "" {
		fmt.Fprintf(&b, "\n%s", e.report.Detail)
	}
	return b.String()
}

func (e *diagnosedError) Unwrap() error {
	return e.err
}

// progressReporter renders pipeline progress. On a terminal it drives an
// in-place progress bar; otherwise it emits sampled log lines so CI output
// stays readable.
type progressReporter struct {
	writer  progress.Writer
	tracker *progress.Tracker
	logger  *slog.Logger
	sampler *logging.ProgressSampler
	stopped bool
}

func newProgressReporter(out io.Writer, logger *slog.Logger) *progressReporter {
	r := &progressReporter{
		logger:  logging.NewComponentLogger(logger, "render"),
		sampler: logging.NewProgressSampler(5),
	}
	if !writerIsTerminal(out) {
		return r
	}

	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetTrackerLength(25)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Visibility.ETA = false
	pw.Style().Visibility.Time = true
	tracker := &progress.Tracker{Message: "Starting", Total: 100}
	pw.AppendTracker(tracker)
	go pw.Render()

	r.writer = pw
	r.tracker = tracker
	return r
}

func (r *progressReporter) update(e pipeline.ProgressEvent) {
	percent := e.Percent * 100
	label := e.Stage
	if label == "" {
		label = pipeline.StageLabel(string(e.Phase))
	}

	if r.tracker != nil {
		r.tracker.UpdateMessage(label)
		r.tracker.SetValue(int64(percent))
		return
	}
	if r.sampler.ShouldLog(percent, label) {
		r.logger.Info("render progress",
			logging.Float64("percent", percent),
			logging.String("stage", label),
			logging.String(logging.FieldPhase, string(e.Phase)),
		)
	}
}

func (r *progressReporter) stop() {
	if r.stopped {
		return
	}
	r.stopped = true
	if r.writer != nil {
		r.tracker.MarkAsDone()
		r.writer.Stop()
		for r.writer.IsRenderInProgress() {
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func writerIsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
