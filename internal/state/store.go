package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"qrbadge/internal/fsutil"
)

// StateDirName is the directory, relative to the output directory, that holds
// per-run state.
const StateDirName = ".qrbadge"

// Store persists run state under:
//   <baseDir>/.qrbadge/runs/<run-id>/
//
// All writes are atomic and durable.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("baseDir is required")
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) runsRootDir() string {
	return filepath.Join(s.baseDir, StateDirName, "runs")
}

// RunDir is the directory holding the state files of runID.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.runsRootDir(), runID)
}

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "run.json")
}

func (s *Store) failuresPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "failures.json")
}

func (s *Store) SaveRun(run Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if err := fsutil.EnsureDir(s.RunDir(run.RunID)); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	data, err := jsonMarshalStable(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.runPath(run.RunID), data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func (s *Store) LoadRun(runID string) (Run, error) {
	var run Run
	if strings.TrimSpace(runID) == "" {
		return Run{}, errors.New("runID is required")
	}
	if err := readJSONStrict(s.runPath(runID), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

// SaveFailures writes the failure report of runID. An empty report is written
// as [] so readers can tell "no failures" from "not recorded".
func (s *Store) SaveFailures(runID string, failures []Failure) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("runID is required")
	}
	for i, f := range failures {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("invalid failure[%d]: %w", i, err)
		}
	}
	if failures == nil {
		failures = []Failure{}
	}
	if err := fsutil.EnsureDir(s.RunDir(runID)); err != nil {
		return fmt.Errorf("ensure run dir: %w", err)
	}
	data, err := jsonMarshalStable(failures)
	if err != nil {
		return fmt.Errorf("marshal failures: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.failuresPath(runID), data, 0o644); err != nil {
		return fmt.Errorf("write failures: %w", err)
	}
	return nil
}

func (s *Store) LoadFailures(runID string) ([]Failure, error) {
	if strings.TrimSpace(runID) == "" {
		return nil, errors.New("runID is required")
	}
	var failures []Failure
	if err := readJSONStrict(s.failuresPath(runID), &failures); err != nil {
		return nil, err
	}
	if failures == nil {
		return nil, errors.New("invalid failures on disk: must be an array (not null)")
	}
	for i, f := range failures {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("invalid failure[%d] on disk: %w", i, err)
		}
	}
	return failures, nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}
