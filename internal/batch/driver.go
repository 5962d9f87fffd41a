package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"qrbadge/internal/core"
	"qrbadge/internal/render"
	"qrbadge/internal/table"
	"qrbadge/internal/trace"
)

// Output locations relative to the run's output directory.
const (
	QRDir         = "qr_codes"
	CardDir       = "id_cards"
	AggregateDir  = "output"
	ResultsFile   = "results.csv"
	DelegatesFile = "delegates_with_codes.csv"
	RecordsFile   = "all_delegates.json"
	imageExt      = ".png"
)

// Outputs toggles the aggregate files.
type Outputs struct {
	ResultsCSV   bool
	DelegatesCSV bool
	JSON         bool
}

// AllOutputs enables every aggregate file.
func AllOutputs() Outputs {
	return Outputs{ResultsCSV: true, DelegatesCSV: true, JSON: true}
}

// Options configures a Driver.
type Options struct {
	// Message is embedded in every payload. Empty means core.DefaultMessage.
	Message string

	// Comma is the input field delimiter. Zero means ','.
	Comma rune

	// Cards enables badge compositing with Template.
	Cards    bool
	Template string

	// CommitteeTemplates overrides Template per committee (case-insensitive).
	CommitteeTemplates map[string]string

	// Offset is the top-left position of the QR image on the template.
	Offset image.Point

	Outputs Outputs
}

// Driver runs the pipeline over a table. A Driver is good for one Run at a
// time; the compositor's template cache lives as long as the Driver.
type Driver struct {
	allocator  *core.Allocator
	renderer   *render.QRRenderer
	compositor *render.Compositor
	logger     *zap.Logger
	sink       trace.Sink
	opts       Options

	committeeTemplates map[string]string
}

// Option customizes a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTraceSink records per-row events to s.
func WithTraceSink(s trace.Sink) Option {
	return func(d *Driver) {
		if s != nil {
			d.sink = s
		}
	}
}

func NewDriver(allocator *core.Allocator, renderer *render.QRRenderer, opts Options, options ...Option) (*Driver, error) {
	if allocator == nil {
		return nil, errors.New("nil allocator")
	}
	if renderer == nil {
		return nil, errors.New("nil renderer")
	}
	if opts.Cards && strings.TrimSpace(opts.Template) == "" {
		return nil, errors.New("cards enabled without a template")
	}
	if opts.Offset.X < 0 || opts.Offset.Y < 0 {
		return nil, fmt.Errorf("negative card offset %v", opts.Offset)
	}

	d := &Driver{
		allocator:          allocator,
		renderer:           renderer,
		compositor:         render.NewCompositor(),
		logger:             zap.NewNop(),
		sink:               trace.NopSink{},
		opts:               opts,
		committeeTemplates: make(map[string]string, len(opts.CommitteeTemplates)),
	}
	for committee, tmpl := range opts.CommitteeTemplates {
		d.committeeTemplates[committeeKey(committee)] = tmpl
	}
	for _, o := range options {
		o(d)
	}
	return d, nil
}

// Run processes every row of the table at inputPath and writes all outputs
// under outputDir.
//
// An unreadable table fails with core.ErrInputLoad before anything is created.
// Row failures are reported in the Summary, not as an error. If ctx is
// cancelled between rows, Run stops, skips the aggregate outputs and returns
// the partial Summary together with ctx.Err().
func (d *Driver) Run(ctx context.Context, inputPath, outputDir string) (*Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	tbl, err := table.Load(inputPath, d.opts.Comma)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("loaded input",
		zap.String("path", inputPath),
		zap.Int("rows", len(tbl.Rows)),
		zap.String("input_hash", tbl.Hash.Short()),
	)

	used := core.NewCodeSet()
	outcomes := make([]Outcome, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		if err := ctx.Err(); err != nil {
			d.logger.Warn("run cancelled", zap.Int("next_row", row.Index), zap.Error(err))
			return summarize(tbl.Hash, outcomes), err
		}
		outcomes = append(outcomes, d.processRow(row, used, outputDir))
	}

	summary := summarize(tbl.Hash, outcomes)
	written, err := d.writeAggregates(tbl.Header, summary.Results(), outputDir)
	if err != nil {
		return summary, err
	}
	summary.Outputs = written
	if len(written) > 0 {
		trace.SafeRecord(d.sink, trace.Event{Kind: trace.EventOutputsWritten, Artifacts: written})
	}

	d.logger.Info("batch complete",
		zap.Int("attempted", summary.Attempted),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("qr_codes", summary.QRCodes),
		zap.Int("cards", summary.Cards),
	)
	return summary, nil
}

func (d *Driver) processRow(row core.Row, used *core.CodeSet, outputDir string) Outcome {
	progress := newRowProgress(row.Index)
	var code, qrRel string

	fail := func(err error) Outcome {
		at := progress.fail()
		kind := core.KindOf(err)
		f := &RowFailure{
			Row:    row.Index,
			Name:   row.DisplayName(),
			Stage:  at,
			Kind:   kind,
			Code:   code,
			QRPath: qrRel,
			Err:    err,
		}
		d.logger.Warn("row failed",
			zap.Int("row", row.Index),
			zap.String("name", f.Name),
			zap.String("stage", string(at)),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		trace.SafeRecord(d.sink, trace.Event{Kind: trace.EventRowFailed, Row: row.Index, Code: code, Reason: string(kind)})
		return Outcome{Failure: f}
	}

	if err := row.Validate(); err != nil {
		return fail(err)
	}
	if err := progress.advance(StageValidated); err != nil {
		return fail(err)
	}

	committee := row.CommitteeOrDefault()
	allocated, err := d.allocator.Allocate(committee, used)
	if err != nil {
		return fail(err)
	}
	code = allocated
	if err := progress.advance(StageCoded); err != nil {
		return fail(err)
	}
	trace.SafeRecord(d.sink, trace.Event{Kind: trace.EventRowCoded, Row: row.Index, Code: code})

	payload, record := core.Build(row, code, d.opts.Message)

	rel := relPath(QRDir, code)
	if _, err := d.renderer.Render(payload, filepath.Join(outputDir, rel)); err != nil {
		return fail(err)
	}
	qrRel = rel
	if err := progress.advance(StageRendered); err != nil {
		return fail(err)
	}
	trace.SafeRecord(d.sink, trace.Event{Kind: trace.EventQRRendered, Row: row.Index, Code: code, Artifacts: []string{qrRel}})

	var cardRel string
	if d.opts.Cards {
		rel := relPath(CardDir, code)
		tmpl := d.templateFor(committee)
		if _, err := d.compositor.Composite(tmpl, filepath.Join(outputDir, qrRel), d.opts.Offset, filepath.Join(outputDir, rel)); err != nil {
			return fail(err)
		}
		cardRel = rel
		if err := progress.advance(StageComposited); err != nil {
			return fail(err)
		}
		trace.SafeRecord(d.sink, trace.Event{Kind: trace.EventCardComposited, Row: row.Index, Code: code, Artifacts: []string{cardRel}})
	}
	if err := progress.advance(StageDone); err != nil {
		return fail(err)
	}

	d.logger.Info("processed delegate",
		zap.Int("row", row.Index),
		zap.String("code", code),
		zap.String("name", record.Name),
		zap.String("committee", record.Committee),
		zap.String("qr", qrRel),
		zap.String("card", cardRel),
	)
	return Outcome{Success: &core.Result{
		Row:      row,
		Code:     code,
		QRPath:   qrRel,
		CardPath: cardRel,
		Record:   record,
	}}
}

func (d *Driver) templateFor(committee string) string {
	if tmpl, ok := d.committeeTemplates[committeeKey(committee)]; ok {
		return tmpl
	}
	return d.opts.Template
}

func (d *Driver) writeAggregates(header []string, results []core.Result, outputDir string) ([]string, error) {
	out := d.opts.Outputs
	if !out.ResultsCSV && !out.DelegatesCSV && !out.JSON {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Join(outputDir, AggregateDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	write := func(name string, fn func(path string) error) error {
		rel := filepath.ToSlash(filepath.Join(AggregateDir, name))
		if err := fn(filepath.Join(outputDir, rel)); err != nil {
			return fmt.Errorf("writing %s: %w", rel, err)
		}
		written = append(written, rel)
		d.logger.Debug("wrote output", zap.String("path", rel), zap.Int("records", len(results)))
		return nil
	}

	if out.ResultsCSV {
		if err := write(ResultsFile, func(p string) error { return table.WriteResultsCSV(p, header, results) }); err != nil {
			return written, err
		}
	}
	if out.DelegatesCSV {
		if err := write(DelegatesFile, func(p string) error { return table.WriteDelegatesCSV(p, results) }); err != nil {
			return written, err
		}
	}
	if out.JSON {
		if err := write(RecordsFile, func(p string) error { return table.WriteRecordsJSON(p, results) }); err != nil {
			return written, err
		}
	}
	return written, nil
}

func relPath(dir, code string) string {
	return dir + "/" + code + imageExt
}

func committeeKey(committee string) string {
	return strings.ToLower(strings.TrimSpace(committee))
}
