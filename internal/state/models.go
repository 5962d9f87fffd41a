package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusPartial means the batch finished but at least one row failed.
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

func (s RunStatus) valid() bool {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusPartial, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// Run is the persisted metadata of one batch invocation.
//
// Counts are zero while the run is in progress. EndTime is null until the run
// reaches a terminal status.
type Run struct {
	RunID     string     `json:"run_id"`
	InputPath string     `json:"input_path"`
	InputHash string     `json:"input_hash"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    RunStatus  `json:"status"`
	Attempted int        `json:"attempted"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	QRCodes   int        `json:"qr_codes"`
	Cards     int        `json:"cards"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.InputPath) == "" {
		errs = append(errs, errors.New("input_path is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if !r.Status.valid() {
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.Status != RunStatusRunning && r.EndTime == nil {
		errs = append(errs, errors.New("end_time is required once the run has finished"))
	}
	if r.Attempted < 0 || r.Succeeded < 0 || r.Failed < 0 || r.QRCodes < 0 || r.Cards < 0 {
		errs = append(errs, errors.New("counts must be >= 0"))
	}
	if r.Succeeded+r.Failed > r.Attempted {
		errs = append(errs, fmt.Errorf("succeeded+failed (%d) exceeds attempted (%d)", r.Succeeded+r.Failed, r.Attempted))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Failure is the persisted record of one row that did not produce a delegate.
//
// Code and QRPath are set when the row got that far before failing.
type Failure struct {
	Row          int    `json:"row"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Code         string `json:"code,omitempty"`
	QRPath       string `json:"qr_path,omitempty"`
	ErrorMessage string `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	if f.Row < 1 {
		errs = append(errs, fmt.Errorf("row must be >= 1, got %d", f.Row))
	}
	if strings.TrimSpace(f.Kind) == "" {
		errs = append(errs, errors.New("kind is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
