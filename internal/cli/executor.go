package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"qrbadge/internal/batch"
	"qrbadge/internal/config"
	"qrbadge/internal/core"
	"qrbadge/internal/logging"
	"qrbadge/internal/render"
	"qrbadge/internal/state"
	"qrbadge/internal/trace"
)

type CLIResult struct {
	ExitCode int
	RunID    string
	Summary  *batch.Summary
}

// Execute runs one batch for a canonical invocation.
//
// Responsibilities:
//   - Resolve configuration (flags over environment over file over defaults).
//   - Run the batch and persist run state and the failure report.
//   - Write the trace when requested.
//   - Print the summary line and translate the outcome to an exit code.
func Execute(ctx context.Context, inv Invocation, stdout, stderr io.Writer) (res CLIResult, execErr error) {
	res.ExitCode = ExitInternalError
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(inv)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, err
	}

	logger, err := logging.NewWriter(stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Verbose: inv.Verbose})
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, configErrorf("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	driver, sink, err := newDriver(cfg, logger)
	if err != nil {
		res.ExitCode = ExitConfigError
		return res, configErrorf("%v", err)
	}

	defer func() {
		if r := recover(); r != nil {
			res.ExitCode = ExitInternalError
			res.Summary = nil
			execErr = fmt.Errorf("panic: %v", r)
			logger.Error("internal error", zap.Any("panic", r))
		}
	}()

	start := time.Now().UTC()
	summary, err := driver.Run(ctx, cfg.Input, cfg.OutputDir)
	if summary == nil {
		if errors.Is(err, core.ErrInputLoad) {
			logger.Error("cannot load input", zap.String("path", cfg.Input), zap.Error(err))
			res.ExitCode = ExitConfigError
			return res, err
		}
		if err == nil {
			err = errors.New("batch produced no summary")
		}
		res.ExitCode = ExitInternalError
		return res, err
	}
	res.Summary = summary
	runErr := err

	runID, stateErr := persistRun(cfg.OutputDir, cfg.Input, start, summary, runErr)
	if stateErr != nil {
		logger.Warn("could not record run state", zap.Error(stateErr))
	}
	res.RunID = runID

	if runErr != nil {
		logger.Error("batch aborted", zap.String("run_id", runID), zap.Error(runErr))
		res.ExitCode = ExitInternalError
		return res, runErr
	}

	if cfg.Trace != "" {
		tr := sink.Trace(summary.InputHash.String())
		if err := tr.WriteFile(cfg.Trace); err != nil {
			res.ExitCode = ExitInternalError
			return res, fmt.Errorf("writing trace: %w", err)
		}
		logger.Debug("wrote trace", zap.String("path", cfg.Trace))
	}

	fmt.Fprintln(stdout, summaryLine(summary.QRCodes, summary.Cards, summary.Attempted, summary.Failed))

	res.ExitCode = ExitSuccess
	if summary.Failed > 0 {
		res.ExitCode = ExitRowFailures
	}
	return res, nil
}

// loadConfig reads the config file, applies the invocation on top and
// resolves relative paths against the working directory.
func loadConfig(inv Invocation) (*config.Config, error) {
	if inv.ConfigExplicit {
		if _, err := os.Stat(inv.ConfigPath); err != nil {
			return nil, configErrorf("config file: %v", err)
		}
	}
	cfg, err := config.Load(inv.ConfigPath)
	if err != nil {
		return nil, configErrorf("%v", err)
	}

	if inv.InputPath != "" {
		cfg.Input = inv.InputPath
	}
	if inv.OutputDir != "" {
		cfg.OutputDir = inv.OutputDir
	}
	if inv.Template != "" {
		cfg.Card.Template = inv.Template
		cfg.Card.Enabled = true
	}
	if inv.TracePath != "" {
		cfg.Trace = inv.TracePath
	}
	if inv.Seed != nil {
		seed := *inv.Seed
		cfg.Seed = &seed
	}

	cfg.Input = resolveUnderWorkDir(inv.WorkDir, cfg.Input)
	cfg.OutputDir = resolveUnderWorkDir(inv.WorkDir, cfg.OutputDir)
	if cfg.Card.Template != "" {
		cfg.Card.Template = resolveUnderWorkDir(inv.WorkDir, cfg.Card.Template)
	}
	for committee, tmpl := range cfg.Card.CommitteeTemplates {
		if tmpl != "" {
			cfg.Card.CommitteeTemplates[committee] = resolveUnderWorkDir(inv.WorkDir, tmpl)
		}
	}
	if cfg.Trace != "" {
		cfg.Trace = resolveUnderWorkDir(inv.WorkDir, cfg.Trace)
	}

	if err := cfg.Validate(); err != nil {
		return nil, configErrorf("invalid config: %v", err)
	}
	return cfg, nil
}

func newDriver(cfg *config.Config, logger *zap.Logger) (*batch.Driver, *trace.Recorder, error) {
	qrOpts, err := cfg.QROptions()
	if err != nil {
		return nil, nil, err
	}
	renderer, err := render.NewQRRenderer(qrOpts)
	if err != nil {
		return nil, nil, err
	}
	comma, err := cfg.Comma()
	if err != nil {
		return nil, nil, err
	}

	allocator := core.NewAllocator(nil)
	if cfg.Seed != nil {
		allocator = core.NewSeededAllocator(*cfg.Seed)
	}

	sink := trace.NewRecorder()
	driver, err := batch.NewDriver(allocator, renderer, batch.Options{
		Message:            cfg.Message,
		Comma:              comma,
		Cards:              cfg.CardsEnabled(),
		Template:           cfg.Card.Template,
		CommitteeTemplates: cfg.Card.CommitteeTemplates,
		Offset:             cfg.CardOffset(),
		Outputs: batch.Outputs{
			ResultsCSV:   cfg.Outputs.ResultsCSV,
			DelegatesCSV: cfg.Outputs.DelegatesCSV,
			JSON:         cfg.Outputs.JSON,
		},
	}, batch.WithLogger(logger), batch.WithTraceSink(sink))
	if err != nil {
		return nil, nil, err
	}
	return driver, sink, nil
}

// persistRun records run.json and failures.json under the output directory.
func persistRun(outputDir, inputPath string, start time.Time, summary *batch.Summary, runErr error) (string, error) {
	st, err := state.NewStore(outputDir)
	if err != nil {
		return "", err
	}
	rec := &state.FailureRecorder{Store: st}

	run, err := rec.StartRun(state.Run{
		InputPath: inputPath,
		InputHash: summary.InputHash.String(),
		StartTime: start,
	})
	if err != nil {
		return "", err
	}

	failures := summary.Failures()
	rows := make([]state.RowFailure, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, state.RowFailure{Row: f.Row, Name: f.Name, Code: f.Code, QRPath: f.QRPath, Err: f.Err})
	}
	if _, err := rec.RecordFailures(run.RunID, rows); err != nil {
		return run.RunID, err
	}

	run.Attempted = summary.Attempted
	run.Succeeded = summary.Succeeded
	run.Failed = summary.Failed
	run.QRCodes = summary.QRCodes
	run.Cards = summary.Cards
	if _, err := rec.FinishRun(run, runStatus(summary, runErr)); err != nil {
		return run.RunID, err
	}
	return run.RunID, nil
}

func runStatus(summary *batch.Summary, runErr error) state.RunStatus {
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		return state.RunStatusCancelled
	case runErr != nil:
		return state.RunStatusFailed
	case summary.Failed > 0:
		return state.RunStatusPartial
	default:
		return state.RunStatusSucceeded
	}
}
