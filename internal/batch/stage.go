package batch

import "fmt"

// Stage is how far a row got through the pipeline.
type Stage string

const (
	StagePending    Stage = "PENDING"
	StageValidated  Stage = "VALIDATED"
	StageCoded      Stage = "CODED"
	StageRendered   Stage = "RENDERED"
	StageComposited Stage = "COMPOSITED"
	StageDone       Stage = "DONE"
	StageFailed     Stage = "FAILED"
)

// IsTerminal reports whether the stage is terminal.
func IsTerminal(s Stage) bool {
	return s == StageDone || s == StageFailed
}

// rowProgress tracks one row's stage. Transitions are validated so a driver bug
// cannot report a row as done without a QR image.
type rowProgress struct {
	row   int
	stage Stage
}

func newRowProgress(row int) *rowProgress {
	return &rowProgress{row: row, stage: StagePending}
}

// advance moves from the current stage to next.
func (p *rowProgress) advance(next Stage) error {
	if !isAllowedTransition(p.stage, next) {
		return fmt.Errorf("row %d: disallowed transition %s -> %s", p.row, p.stage, next)
	}
	p.stage = next
	return nil
}

// fail marks the row failed and returns the stage it failed in.
func (p *rowProgress) fail() Stage {
	at := p.stage
	if !IsTerminal(p.stage) {
		p.stage = StageFailed
	}
	return at
}

func isAllowedTransition(from, to Stage) bool {
	switch from {
	case StagePending:
		return to == StageValidated
	case StageValidated:
		return to == StageCoded
	case StageCoded:
		return to == StageRendered
	case StageRendered:
		// Without cards a rendered row is done.
		return to == StageComposited || to == StageDone
	case StageComposited:
		return to == StageDone
	default:
		return false
	}
}
