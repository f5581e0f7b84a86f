package pipeline

import "fmt"

// Phase identifies a stage of the render pipeline. A run moves strictly
// forward through the phases; the only backward-looking edge is the
// universal transition to PhaseFailed.
type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseValidating Phase = "validating"
	PhaseExtracting Phase = "extracting"
	PhaseStaging    Phase = "staging"
	PhaseBundling   Phase = "bundling"
	PhaseSelecting  Phase = "selecting"
	PhaseRendering  Phase = "rendering"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

var phaseOrder = map[Phase]int{
	PhasePending:    0,
	PhaseValidating: 1,
	PhaseExtracting: 2,
	PhaseStaging:    3,
	PhaseBundling:   4,
	PhaseSelecting:  5,
	PhaseRendering:  6,
	PhaseDone:       7,
}

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// next reports whether target directly follows p in the forward ordering.
func (p Phase) next(target Phase) bool {
	from, ok := phaseOrder[p]
	if !ok {
		return false
	}
	to, ok := phaseOrder[target]
	if !ok {
		return false
	}
	return to == from+1
}

// advance validates the forward-only discipline. Any phase may transition to
// PhaseFailed; everything else must follow the fixed order with no skips.
func advance(current, target Phase) error {
	if current.Terminal() {
		return fmt.Errorf("run already finished in phase %s", current)
	}
	if target == PhaseFailed {
		return nil
	}
	if !current.next(target) {
		return fmt.Errorf("illegal phase transition %s -> %s", current, target)
	}
	return nil
}
