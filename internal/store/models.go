package store

import (
	"encoding/json"
	"time"
)

// Run is one persisted validation run.
type Run struct {
	ID           string          `json:"id"`
	CreatedAt    time.Time       `json:"created_at"`
	Sources      []string        `json:"sources"`
	SliceCount   int             `json:"slice_count,omitempty"`
	MajorCount   int             `json:"major_errors"`
	ErrorCount   int             `json:"errors"`
	WarningCount int             `json:"warnings"`
	Suppressed   bool            `json:"suppressed"`
	ReportText   string          `json:"report_text"`
	ArtifactsDir string          `json:"artifacts_dir,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// Summary reports how a run ended in one word.
func (r *Run) Summary() string {
	switch {
	case r.MajorCount > 0:
		return "major errors"
	case r.ErrorCount > 0:
		return "errors"
	case r.WarningCount > 0:
		return "warnings"
	}
	return "clean"
}

// Stats aggregates the runs kept in the database.
type Stats struct {
	Runs       int        `json:"runs"`
	Suppressed int        `json:"suppressed"`
	Latest     *time.Time `json:"latest,omitempty"`
}
