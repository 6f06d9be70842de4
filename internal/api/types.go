package api

import (
	"encoding/json"
	"time"

	"aslreport/internal/pipeline"
	"aslreport/internal/report"
	"aslreport/internal/store"
	"aslreport/internal/validation"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ValidationResponse is the body returned for one validation run.
type ValidationResponse struct {
	RunID              string              `json:"run_id,omitempty"`
	MajorErrors        validation.Findings `json:"major_errors"`
	MajorErrorsConcise validation.Findings `json:"major_errors_concise"`
	Errors             validation.Findings `json:"errors"`
	ErrorsConcise      validation.Findings `json:"errors_concise"`
	Warnings           validation.Findings `json:"warnings"`
	WarningsConcise    validation.Findings `json:"warnings_concise"`
	Report             string              `json:"report"`
	ExtendedReport     string              `json:"extended_report,omitempty"`
	Parameters         []report.Parameter  `json:"parameters"`
	ExtendedParameters []report.Parameter  `json:"extended_parameters,omitempty"`
	Suppressed         bool                `json:"suppressed"`
	NIfTISliceNumber   int                 `json:"nifti_slice_number,omitempty"`
	// The three digests list "field: message" lines.
	Inconsistencies        []string `json:"inconsistencies"`
	MajorInconsistencies   []string `json:"major_inconsistencies"`
	WarningInconsistencies []string `json:"warning_inconsistencies"`
}

// FromResult converts a pipeline result.
func FromResult(runID string, res *pipeline.Result) ValidationResponse {
	out := ValidationResponse{
		RunID:                  runID,
		Report:                 res.ReportText,
		ExtendedReport:         res.Report.Extended,
		Parameters:             nonNilParams(res.Report.Parameters),
		ExtendedParameters:     res.Report.ExtendedParameters,
		Suppressed:             res.Suppressed,
		NIfTISliceNumber:       res.SliceCount,
		Inconsistencies:        nonNil(res.Inconsistencies.Errors),
		MajorInconsistencies:   nonNil(res.Inconsistencies.Major),
		WarningInconsistencies: nonNil(res.Inconsistencies.Warnings),
	}
	if o := res.Outcome; o != nil {
		out.MajorErrors = o.MajorErrors
		out.MajorErrorsConcise = o.MajorErrorsConcise
		out.Errors = o.Errors
		out.ErrorsConcise = o.ErrorsConcise
		out.Warnings = o.Warnings
		out.WarningsConcise = o.WarningsConcise
	}
	return out
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID         string   `json:"id"`
	CreatedAt  string   `json:"created_at"`
	Sources    []string `json:"sources"`
	SliceCount int      `json:"slice_count,omitempty"`
	Major      int      `json:"major_errors"`
	Errors     int      `json:"errors"`
	Warnings   int      `json:"warnings"`
	Suppressed bool     `json:"suppressed"`
	Status     string   `json:"status"`
}

// RunDetail is a stored run with its report and full result.
type RunDetail struct {
	RunSummary
	Report string          `json:"report"`
	Result json.RawMessage `json:"result,omitempty"`
}

// FromRun converts a stored run to its summary.
func FromRun(run *store.Run) RunSummary {
	if run == nil {
		return RunSummary{}
	}
	return RunSummary{
		ID:         run.ID,
		CreatedAt:  formatTime(run.CreatedAt),
		Sources:    nonNil(run.Sources),
		SliceCount: run.SliceCount,
		Major:      run.MajorCount,
		Errors:     run.ErrorCount,
		Warnings:   run.WarningCount,
		Suppressed: run.Suppressed,
		Status:     run.Summary(),
	}
}

// FromRuns converts a slice of stored runs.
func FromRuns(runs []*store.Run) []RunSummary {
	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			continue
		}
		out = append(out, FromRun(run))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}

func nonNilParams(params []report.Parameter) []report.Parameter {
	if params == nil {
		return []report.Parameter{}
	}
	return params
}
