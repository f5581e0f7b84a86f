package pipeline

import (
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ProgressEvent is the pipeline's outward progress signal. Percent is the
// overall run completion in [0, 1] and never decreases over the lifetime of
// a run, regardless of what the collaborators report.
type ProgressEvent struct {
	Phase   Phase
	Stage   string
	Percent float64
	Message string
}

// phaseWindow maps a phase onto its slice of the overall completion range.
type phaseWindow struct {
	start float64
	end   float64
}

// Bundling and rendering dominate wall time; the bookkeeping phases get
// token slices so the bar still moves during them.
var phaseWindows = map[Phase]phaseWindow{
	PhaseValidating: {0.00, 0.02},
	PhaseExtracting: {0.02, 0.05},
	PhaseStaging:    {0.05, 0.08},
	PhaseBundling:   {0.08, 0.45},
	PhaseSelecting:  {0.45, 0.48},
	PhaseRendering:  {0.48, 1.00},
}

var stageTitle = cases.Title(language.English)

// StageLabel renders a collaborator stage token for display, turning
// "encoding_frames" into "Encoding Frames".
func StageLabel(stage string) string {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return ""
	}
	stage = strings.NewReplacer("_", " ", "-", " ").Replace(stage)
	return stageTitle.String(stage)
}

// progressTracker folds per-phase collaborator progress into a monotonic
// overall percentage. Collaborators occasionally restart their counters or
// emit slightly out-of-order updates; the tracker clamps so observers only
// ever see the run move forward.
type progressTracker struct {
	mu      sync.Mutex
	percent float64
	sink    func(ProgressEvent)
}

func newProgressTracker(sink func(ProgressEvent)) *progressTracker {
	return &progressTracker{sink: sink}
}

// update reports fractional progress within a phase. fraction is clamped to
// [0, 1] before being projected onto the phase's window.
func (t *progressTracker) update(phase Phase, fraction float64, stage, message string) {
	window, ok := phaseWindows[phase]
	if !ok {
		return
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	overall := window.start + fraction*(window.end-window.start)

	t.mu.Lock()
	if overall < t.percent {
		overall = t.percent
	}
	t.percent = overall
	sink := t.sink
	t.mu.Unlock()

	if sink != nil {
		sink(ProgressEvent{
			Phase:   phase,
			Stage:   StageLabel(stage),
			Percent: overall,
			Message: message,
		})
	}
}

// enter marks the beginning of a phase.
func (t *progressTracker) enter(phase Phase) {
	t.update(phase, 0, string(phase), "")
}

// finish drives the bar to 100% on success.
func (t *progressTracker) finish() {
	t.update(PhaseRendering, 1, "done", "")
}
