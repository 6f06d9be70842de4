package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const summaryColumns = "id, created_at, sources_json, slice_count, major_count, error_count, warning_count, suppressed, report_text, artifacts_dir"

const runColumns = summaryColumns + ", result_json"

type rowScanner interface{ Scan(dest ...any) error }

func scanRun(scanner rowScanner, withResult bool) (*Run, error) {
	var (
		id           string
		createdRaw   string
		sourcesRaw   string
		sliceCount   sql.NullInt64
		majorCount   sql.NullInt64
		errorCount   sql.NullInt64
		warningCount sql.NullInt64
		suppressed   sql.NullInt64
		reportText   sql.NullString
		artifactsDir sql.NullString
		resultRaw    sql.NullString
	)
	dest := []any{
		&id,
		&createdRaw,
		&sourcesRaw,
		&sliceCount,
		&majorCount,
		&errorCount,
		&warningCount,
		&suppressed,
		&reportText,
		&artifactsDir,
	}
	if withResult {
		dest = append(dest, &resultRaw)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	run := &Run{
		ID:           id,
		SliceCount:   int(sliceCount.Int64),
		MajorCount:   int(majorCount.Int64),
		ErrorCount:   int(errorCount.Int64),
		WarningCount: int(warningCount.Int64),
		Suppressed:   suppressed.Int64 != 0,
		ReportText:   reportText.String,
		ArtifactsDir: artifactsDir.String,
	}
	if err := json.Unmarshal([]byte(sourcesRaw), &run.Sources); err != nil {
		return nil, fmt.Errorf("decode sources of run %s: %w", id, err)
	}
	if resultRaw.Valid && resultRaw.String != "" {
		run.Result = json.RawMessage(resultRaw.String)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
