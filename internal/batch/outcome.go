package batch

import (
	"qrbadge/internal/core"
)

// RowFailure describes a row that produced no delegate record.
//
// Code and QRPath are set when the row failed after allocation or rendering;
// the QR image stays on disk in that case.
type RowFailure struct {
	Row    int
	Name   string
	Stage  Stage
	Kind   core.ErrorKind
	Code   string
	QRPath string
	Err    error
}

// Outcome is the result of one row: exactly one of Success and Failure is set.
type Outcome struct {
	Success *core.Result
	Failure *RowFailure
}

// Summary is derived from the ordered outcome list of a run.
//
// QRCodes counts QR images written, including those of rows that later failed
// at the badge stage. Cards counts badges written.
type Summary struct {
	InputHash core.InputHash

	Attempted int
	Succeeded int
	Failed    int
	QRCodes   int
	Cards     int

	Outcomes []Outcome

	// Outputs lists the aggregate files written, relative to the output directory.
	Outputs []string
}

func summarize(inputHash core.InputHash, outcomes []Outcome) *Summary {
	s := &Summary{InputHash: inputHash, Outcomes: outcomes, Attempted: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.Success != nil:
			s.Succeeded++
			s.QRCodes++
			if o.Success.CardPath != "" {
				s.Cards++
			}
		case o.Failure != nil:
			s.Failed++
			if o.Failure.QRPath != "" {
				s.QRCodes++
			}
		}
	}
	return s
}

// Results returns the successful records in row order.
func (s *Summary) Results() []core.Result {
	out := make([]core.Result, 0, s.Succeeded)
	for _, o := range s.Outcomes {
		if o.Success != nil {
			out = append(out, *o.Success)
		}
	}
	return out
}

// Failures returns the failed rows in row order.
func (s *Summary) Failures() []RowFailure {
	out := make([]RowFailure, 0, s.Failed)
	for _, o := range s.Outcomes {
		if o.Failure != nil {
			out = append(out, *o.Failure)
		}
	}
	return out
}
