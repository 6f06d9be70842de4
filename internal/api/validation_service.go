package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"aslreport/internal/artifacts"
	"aslreport/internal/ingest"
	"aslreport/internal/logging"
	"aslreport/internal/pipeline"
	"aslreport/internal/store"
)

// RunStore abstracts run persistence.
type RunStore interface {
	Save(ctx context.Context, run *store.Run) error
	Get(ctx context.Context, id string) (*store.Run, error)
	List(ctx context.Context, limit int) ([]*store.Run, error)
	PruneBefore(ctx context.Context, cutoff time.Time) ([]*store.Run, error)
}

// ArtifactStore abstracts the per-run artifact files.
type ArtifactStore interface {
	Write(ctx context.Context, runID string, res *pipeline.Result) (string, error)
	Path(runID string, kind artifacts.Kind) (string, error)
	Remove(ctx context.Context, runID string) error
}

// Submission is one batch of files to validate.
type Submission struct {
	Files []ingest.File
	// SliceCount comes from an accompanying NIfTI image; 0 when absent.
	SliceCount int
	// Save persists the run and its artifacts.
	Save bool
}

// RunResult is the outcome of Submit.
type RunResult struct {
	RunID        string
	ArtifactsDir string
	Saved        bool
	Result       *pipeline.Result
}

// Response converts the run to its wire format.
func (r *RunResult) Response() ValidationResponse {
	return FromResult(r.RunID, r.Result)
}

// ValidationService runs batches and serves the run history.
type ValidationService struct {
	runner    *pipeline.Runner
	runs      RunStore
	artifacts ArtifactStore
	logger    *slog.Logger
}

// NewValidationService wires a service. runs and arts may be nil, which
// disables persistence and history.
func NewValidationService(runner *pipeline.Runner, runs RunStore, arts ArtifactStore, logger *slog.Logger) *ValidationService {
	return &ValidationService{
		runner:    runner,
		runs:      runs,
		artifacts: arts,
		logger:    logging.NewComponentLogger(logger, "validation-service"),
	}
}

// SliceCount reads the slice count of a NIfTI image.
func SliceCount(name string, r io.Reader) (int, error) {
	n, err := ingest.SliceCount(name, r)
	if err != nil {
		return 0, Wrap(ErrValidation, "ingest", "read nifti", name, err)
	}
	return n, nil
}

// Submit validates one batch. Findings never produce an error; errors are
// reserved for unusable input and persistence failures.
func (s *ValidationService) Submit(ctx context.Context, sub Submission) (*RunResult, error) {
	if s == nil || s.runner == nil {
		return nil, Wrap(ErrConfiguration, "validate", "submit", "validation service unavailable", nil)
	}
	groups, err := ingest.GroupFiles(sub.Files)
	if err != nil {
		return nil, Wrap(ErrValidation, "ingest", "group files", "", err)
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx = logging.WithStage(ctx, "validate")
	logger := logging.WithContext(ctx, s.logger)
	logger.Debug("validation submitted",
		logging.Int("files", len(sub.Files)),
		logging.Int("sessions", len(groups)),
		logging.Int("slice_count", sub.SliceCount),
	)

	res, err := s.runner.Run(ctx, pipeline.Input{Groups: groups, SliceCount: sub.SliceCount})
	if err != nil {
		if errors.Is(err, pipeline.ErrNoSessions) {
			return nil, Wrap(ErrValidation, "validate", "run", "", err)
		}
		return nil, Wrap(ErrTransient, "validate", "run", "", err)
	}

	out := &RunResult{RunID: runID, Result: res}
	if !sub.Save || s.runs == nil {
		return out, nil
	}
	if err := s.persist(logging.WithStage(ctx, "persist"), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ValidationService) persist(ctx context.Context, out *RunResult) error {
	res := out.Result
	if s.artifacts != nil {
		dir, err := s.artifacts.Write(ctx, out.RunID, res)
		if err != nil {
			return Wrap(ErrTransient, "persist", "write artifacts", "", err)
		}
		out.ArtifactsDir = dir
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return Wrap(ErrTransient, "persist", "encode result", "", err)
	}
	majors, errs, warns := res.Outcome.Counts()
	run := &store.Run{
		ID:           out.RunID,
		Sources:      res.Sources,
		SliceCount:   res.SliceCount,
		MajorCount:   majors,
		ErrorCount:   errs,
		WarningCount: warns,
		Suppressed:   res.Suppressed,
		ReportText:   res.ReportText,
		ArtifactsDir: out.ArtifactsDir,
		Result:       payload,
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return Wrap(ErrTransient, "persist", "save run", "", err)
	}
	out.Saved = true
	logging.WithContext(ctx, s.logger).Info("run saved",
		logging.String("artifacts_dir", out.ArtifactsDir),
		logging.String(logging.FieldEventType, "run_saved"),
	)
	return nil
}

// List returns the newest runs first. A limit of 0 lists all runs.
func (s *ValidationService) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if s == nil || s.runs == nil {
		return []RunSummary{}, nil
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, Wrap(ErrTransient, "runs", "list", "", err)
	}
	return FromRuns(runs), nil
}

// Get fetches one stored run.
func (s *ValidationService) Get(ctx context.Context, id string) (*RunDetail, error) {
	if s == nil || s.runs == nil {
		return nil, Wrap(ErrNotFound, "runs", "get", "run history disabled", nil)
	}
	run, err := s.runs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Wrap(ErrNotFound, "runs", "get", id, err)
		}
		return nil, Wrap(ErrTransient, "runs", "get", id, err)
	}
	return &RunDetail{
		RunSummary: FromRun(run),
		Report:     run.ReportText,
		Result:     run.Result,
	}, nil
}

// ArtifactPath resolves a download type of a stored run to a file path.
func (s *ValidationService) ArtifactPath(ctx context.Context, id, reportType string) (string, error) {
	kind, err := artifacts.ParseKind(reportType)
	if err != nil {
		return "", Wrap(ErrValidation, "download", "", "", err)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	if s.artifacts == nil {
		return "", Wrap(ErrNotFound, "download", string(kind), "artifacts disabled", nil)
	}
	path, err := s.artifacts.Path(id, kind)
	if err != nil {
		if errors.Is(err, artifacts.ErrMissing) || errors.Is(err, artifacts.ErrInvalidRunID) {
			return "", Wrap(ErrNotFound, "download", string(kind), id, err)
		}
		return "", Wrap(ErrTransient, "download", string(kind), id, err)
	}
	return path, nil
}

// Prune deletes runs older than retentionDays together with their
// artifacts. A value of 0 disables pruning.
func (s *ValidationService) Prune(ctx context.Context, retentionDays int) (int, error) {
	if s == nil || s.runs == nil || retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed, err := s.runs.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, Wrap(ErrTransient, "runs", "prune", "", err)
	}
	if s.artifacts != nil {
		for _, run := range removed {
			if err := s.artifacts.Remove(ctx, run.ID); err != nil {
				logging.WarnWithContext(s.logger, "run artifacts not removed", "artifacts_prune_failed",
					logging.String(logging.FieldRunID, run.ID),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "remove the run directory by hand"),
					logging.String(logging.FieldImpact, "orphaned artifact files remain on disk"),
				)
			}
		}
	}
	if len(removed) > 0 {
		s.logger.Info("runs pruned", logging.Int("count", len(removed)), logging.String(logging.FieldEventType, "runs_pruned"))
	}
	return len(removed), nil
}
