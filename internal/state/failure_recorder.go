package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"qrbadge/internal/core"
)

// FailureRecorder tracks one run on disk: the run.json lifecycle and the
// failures.json report.
type FailureRecorder struct {
	Store *Store

	// Now defaults to time.Now; tests pin it.
	Now func() time.Time
}

func (r *FailureRecorder) NewRunID() string {
	return uuid.NewString()
}

func (r *FailureRecorder) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// StartRun persists run in the running state.
func (r *FailureRecorder) StartRun(run Run) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	if run.RunID == "" {
		run.RunID = r.NewRunID()
	}
	if run.StartTime.IsZero() {
		run.StartTime = r.now()
	}
	run.Status = RunStatusRunning
	run.EndTime = nil
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run: %w", err)
	}
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// FinishRun stamps the end time and terminal status and persists run.
func (r *FailureRecorder) FinishRun(run Run, status RunStatus) (Run, error) {
	if r == nil || r.Store == nil {
		return Run{}, errors.New("Store is required")
	}
	if status == RunStatusRunning {
		return Run{}, errors.New("FinishRun requires a terminal status")
	}
	end := r.now()
	run.EndTime = &end
	run.Status = status
	if err := r.Store.SaveRun(run); err != nil {
		return Run{}, err
	}
	return run, nil
}

// RowFailure is what the caller knows about a failed row.
type RowFailure struct {
	Row    int
	Name   string
	Code   string
	QRPath string
	Err    error
}

// RecordFailures classifies each row failure and writes the run's failure report.
func (r *FailureRecorder) RecordFailures(runID string, rows []RowFailure) ([]Failure, error) {
	if r == nil || r.Store == nil {
		return nil, errors.New("Store is required")
	}
	out := make([]Failure, 0, len(rows))
	for _, rf := range rows {
		f, err := failureFromError(rf.Err)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rf.Row, err)
		}
		f.Row = rf.Row
		f.Name = rf.Name
		f.Code = rf.Code
		f.QRPath = rf.QRPath
		out = append(out, f)
	}
	if err := r.Store.SaveFailures(runID, out); err != nil {
		return nil, err
	}
	return out, nil
}

func failureFromError(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	var ce *core.Error
	if errors.As(err, &ce) && ce != nil {
		msg := ce.Msg
		if ce.Err != nil {
			if msg != "" {
				msg += ": "
			}
			msg += ce.Err.Error()
		}
		return Failure{
			Kind:         string(core.KindOf(err)),
			ErrorMessage: nonEmptyOr(msg, ce.Error()),
		}, nil
	}

	return Failure{
		Kind:         string(core.KindOf(err)),
		ErrorMessage: err.Error(),
	}, nil
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
