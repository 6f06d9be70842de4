// Package pipeline runs one batch through normalization, M0 checks,
// validation and report synthesis.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"aslreport/internal/ingest"
	"aslreport/internal/logging"
	"aslreport/internal/m0scan"
	"aslreport/internal/normalize"
	"aslreport/internal/report"
	"aslreport/internal/schema"
	"aslreport/internal/session"
	"aslreport/internal/validation"
)

// ErrNoSessions is returned for a batch without any ASL document.
var ErrNoSessions = errors.New("no ASL metadata documents in batch")

// Options is the caller policy applied after validation.
type Options struct {
	// SuppressOnMajor replaces the report with a fixed notice when any
	// major error was found.
	SuppressOnMajor bool
	// Extended adds the recommended-parameter paragraph.
	Extended bool
}

// Input is one batch of grouped documents.
type Input struct {
	Groups []ingest.Group
	// SliceCount comes from the NIfTI header, 0 when no image was given.
	SliceCount int
}

// Digest lists cross-session findings per tier as "field: message" lines.
type Digest struct {
	Major    []string `json:"major"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Result is everything a run produced.
type Result struct {
	Sources         []string            `json:"sources"`
	Outcome         *validation.Outcome `json:"outcome"`
	Report          report.Report       `json:"report"`
	ReportText      string              `json:"report_text"`
	Suppressed      bool                `json:"suppressed"`
	SliceCount      int                 `json:"slice_count,omitempty"`
	Inconsistencies Digest              `json:"inconsistencies"`
}

// Runner holds the rule tables and policy shared by every run. It is safe
// for concurrent use.
type Runner struct {
	tables    *schema.Tables
	validator *validation.Validator
	aliases   map[string]string
	opts      Options
	logger    *slog.Logger
}

// New builds a runner over tables.
func New(tables *schema.Tables, opts Options, logger *slog.Logger) *Runner {
	return &Runner{
		tables:    tables,
		validator: validation.New(tables),
		aliases:   tables.Aliases(),
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Tables exposes the rule tables of the runner.
func (r *Runner) Tables() *schema.Tables {
	return r.tables
}

// Run processes one batch. Input groups are not modified. Validation
// findings are part of the result; errors are reserved for an empty batch or
// a cancelled context.
func (r *Runner) Run(ctx context.Context, in Input) (*Result, error) {
	if len(in.Groups) == 0 {
		return nil, ErrNoSessions
	}
	started := time.Now()
	logger := logging.WithContext(ctx, r.logger)

	res := &Result{SliceCount: in.SliceCount}
	scans := make([]m0scan.Scan, len(in.Groups))
	batch := make([]*session.Session, len(in.Groups))
	opts := normalize.Options{Aliases: r.aliases}
	for i, g := range in.Groups {
		res.Sources = append(res.Sources, g.Sources()...)
		asl := normalize.Session(g.ASL, opts)
		scan := m0scan.Scan{ASL: asl}
		if g.M0 != nil {
			scan.M0 = normalize.Session(g.M0, opts)
		}
		if g.Context != nil {
			normalize.ApplyContext(asl, g.Context.Volumes)
			scan.Context = g.Context.Volumes
			scan.ContextSource = g.Context.Source
			scan.HasContext = true
		}
		scans[i] = scan
		batch[i] = asl
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m0 := m0scan.Analyze(scans, r.tables)
	outcome := r.validator.Validate(batch)
	for _, msg := range m0.Errors {
		outcome.Add(m0scan.ErrorKey, schema.SeverityError, msg, msg, nil, false)
	}
	for _, msg := range m0.Warnings {
		outcome.Add(m0scan.WarningKey, schema.SeverityWarning, msg, msg, nil, false)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Outcome = outcome
	res.Inconsistencies = Digest{
		Major:    outcome.Inconsistencies(schema.SeverityMajor),
		Errors:   outcome.Inconsistencies(schema.SeverityError),
		Warnings: outcome.Inconsistencies(schema.SeverityWarning),
	}
	if r.opts.SuppressOnMajor && outcome.HasMajor() {
		res.Suppressed = true
		res.Report = report.Suppressed()
	} else {
		res.Report = report.Generate(report.Input{
			Outcome:    outcome,
			M0Sentence: m0.Sentence,
			M0TR:       m0.TR,
			SliceCount: in.SliceCount,
			Extended:   r.opts.Extended,
		})
	}
	res.ReportText = res.Report.Text()

	majors, errs, warns := outcome.Counts()
	logger.Info("validation finished",
		logging.Int("sessions", len(batch)),
		logging.Int("major_errors", majors),
		logging.Int("errors", errs),
		logging.Int("warnings", warns),
		logging.Bool("report_suppressed", res.Suppressed),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "validation_finished"),
	)
	if res.Suppressed {
		logging.WarnWithContext(logger, "report suppressed by major errors", "report_suppressed",
			logging.Int("major_errors", majors),
			logging.String(logging.FieldErrorHint, "fix the fields listed under major errors"),
			logging.String(logging.FieldImpact, "no methods paragraph was generated"),
		)
	}
	return res, nil
}
