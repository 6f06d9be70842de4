// Package artifacts writes the per-run report files that the CLI and the
// HTTP download endpoint hand out.
//
// Every run owns a directory named after its ID under the artifacts root.
// Writers in different processes serialize through a file lock in the root.
package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"aslreport/internal/logging"
	"aslreport/internal/pipeline"
)

// Kind names one downloadable artifact.
type Kind string

const (
	KindMajorErrors Kind = "major_errors"
	KindErrors      Kind = "errors"
	KindWarnings    Kind = "warnings"
	KindReport      Kind = "report"
)

// Kinds lists every artifact in the order it is written.
var Kinds = []Kind{KindMajorErrors, KindErrors, KindWarnings, KindReport}

var fileNames = map[Kind]string{
	KindMajorErrors: "major_error_report.json",
	KindErrors:      "error_report.json",
	KindWarnings:    "warning_report.json",
	KindReport:      "report.txt",
}

var (
	// ErrUnknownKind is returned for a download type outside Kinds.
	ErrUnknownKind = errors.New("invalid report type")
	// ErrInvalidRunID is returned for IDs that are not UUIDs.
	ErrInvalidRunID = errors.New("invalid run id")
	// ErrMissing is returned when a run has no artifact of the requested kind.
	ErrMissing = errors.New("artifact not found")
)

const (
	lockFileName   = ".artifacts.lock"
	lockRetryDelay = 50 * time.Millisecond
)

// ParseKind resolves a download type.
func ParseKind(value string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := fileNames[kind]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
	return kind, nil
}

// FileName is the on-disk name of the artifact.
func (k Kind) FileName() string {
	return fileNames[k]
}

// Writer stores artifacts under a root directory.
type Writer struct {
	root string
	// mu serializes writers in this process; lock covers other processes.
	mu     sync.Mutex
	lock   *flock.Flock
	logger *slog.Logger
}

// NewWriter returns a writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{
		root:   dir,
		lock:   flock.New(filepath.Join(dir, lockFileName)),
		logger: logging.NewComponentLogger(logger, "artifacts"),
	}
}

// Root returns the artifacts root directory.
func (w *Writer) Root() string {
	return w.root
}

// Dir returns the directory of a run.
func (w *Writer) Dir(runID string) (string, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return filepath.Join(w.root, runID), nil
}

// Write stores every artifact of res for runID and returns the run directory.
func (w *Writer) Write(ctx context.Context, runID string, res *pipeline.Result) (string, error) {
	if res == nil || res.Outcome == nil {
		return "", errors.New("write artifacts: empty result")
	}
	dir, err := w.Dir(runID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts root: %w", err)
	}
	unlock, err := w.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	payloads := map[Kind]any{
		KindMajorErrors: res.Outcome.MajorErrors,
		KindErrors:      res.Outcome.Errors,
		KindWarnings:    res.Outcome.Warnings,
	}
	for _, kind := range Kinds {
		var data []byte
		if kind == KindReport {
			data = []byte(res.ReportText)
		} else {
			data, err = json.MarshalIndent(payloads[kind], "", "  ")
			if err != nil {
				return "", fmt.Errorf("encode %s: %w", kind.FileName(), err)
			}
			data = append(data, '\n')
		}
		if err := writeFileAtomic(filepath.Join(dir, kind.FileName()), data); err != nil {
			return "", err
		}
	}
	w.logger.Debug("artifacts written",
		logging.String(logging.FieldRunID, runID),
		logging.String("dir", dir),
	)
	return dir, nil
}

// Path returns the location of one artifact of a run.
func (w *Writer) Path(runID string, kind Kind) (string, error) {
	dir, err := w.Dir(runID)
	if err != nil {
		return "", err
	}
	name := kind.FileName()
	if name == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s for run %s", ErrMissing, kind, runID)
		}
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	return path, nil
}

// Remove deletes the directory of a run. Missing directories are not an error.
func (w *Writer) Remove(ctx context.Context, runID string) error {
	dir, err := w.Dir(runID)
	if err != nil {
		return err
	}
	unlock, err := w.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove run directory: %w", err)
	}
	return nil
}

func (w *Writer) acquire(ctx context.Context) (func(), error) {
	w.mu.Lock()
	ok, err := w.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("acquire artifacts lock: %w", err)
	}
	if !ok {
		w.mu.Unlock()
		return nil, errors.New("acquire artifacts lock: not acquired")
	}
	return func() {
		if err := w.lock.Unlock(); err != nil {
			w.logger.Warn("failed to release artifacts lock", logging.Error(err))
		}
		w.mu.Unlock()
	}, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
