package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aslreport/internal/api"
	"aslreport/internal/artifacts"
	"aslreport/internal/config"
	"aslreport/internal/ingest"
	"aslreport/internal/logging"
	"aslreport/internal/pipeline"
	"aslreport/internal/schema"
	"aslreport/internal/store"
	"aslreport/internal/testsupport"
)

func newService(t *testing.T, cfg *config.Config) (*api.ValidationService, *store.Store) {
	t.Helper()
	tables, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default: %v", err)
	}
	runner := pipeline.New(tables, pipeline.Options{
		SuppressOnMajor: cfg.Report.SuppressOnMajor,
		Extended:        cfg.Report.Extended,
	}, logging.NewNop())
	st := testsupport.MustOpenStore(t, cfg)
	writer := artifacts.NewWriter(cfg.Paths.ArtifactsDir, logging.NewNop())
	return api.NewValidationService(runner, st, writer, logging.NewNop()), st
}

func sessionFiles(t *testing.T, prefix string, asl map[string]any) []ingest.File {
	t.Helper()
	return []ingest.File{
		{Name: prefix + "_asl.json", Data: testsupport.MarshalJSON(t, asl)},
		{Name: prefix + "_m0scan.json", Data: testsupport.MarshalJSON(t, testsupport.M0Metadata())},
		{Name: prefix + "_aslcontext.tsv", Data: testsupport.ContextTSV(testsupport.ControlLabel(3))},
	}
}

func TestSubmitPersistsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, _ := newService(t, cfg)
	ctx := context.Background()

	out, err := svc.Submit(ctx, api.Submission{
		Files:      sessionFiles(t, "sub-01", testsupport.PCASLMetadata()),
		SliceCount: 24,
		Save:       true,
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !out.Saved || out.RunID == "" {
		t.Fatalf("expected saved run, got %#v", out)
	}
	if out.ArtifactsDir != filepath.Join(cfg.Paths.ArtifactsDir, out.RunID) {
		t.Fatalf("artifacts dir = %q", out.ArtifactsDir)
	}

	resp := out.Response()
	if resp.RunID != out.RunID || resp.NIfTISliceNumber != 24 {
		t.Fatalf("unexpected response %#v", resp)
	}
	if !strings.Contains(resp.Report, "24 slices with 4mm thickness") {
		t.Fatalf("report missing slice count: %q", resp.Report)
	}
	if resp.MajorInconsistencies == nil || len(resp.MajorInconsistencies) != 0 {
		t.Fatalf("expected empty major digest, got %#v", resp.MajorInconsistencies)
	}

	detail, err := svc.Get(ctx, out.RunID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail.Report != resp.Report || detail.Status != "clean" || detail.SliceCount != 24 {
		t.Fatalf("unexpected detail %#v", detail.RunSummary)
	}
	var stored map[string]any
	if err := json.Unmarshal(detail.Result, &stored); err != nil {
		t.Fatalf("decode stored result: %v", err)
	}
	if stored["report_text"] != resp.Report {
		t.Fatal("stored result does not match response")
	}

	path, err := svc.ArtifactPath(ctx, out.RunID, "report")
	if err != nil {
		t.Fatalf("ArtifactPath returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report artifact: %v", err)
	}
	if string(data) != resp.Report {
		t.Fatalf("artifact = %q", data)
	}

	runs, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != out.RunID || len(runs[0].Sources) != 3 {
		t.Fatalf("unexpected runs %#v", runs)
	}
}

func TestSubmitWithoutSave(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, _ := newService(t, cfg)

	out, err := svc.Submit(context.Background(), api.Submission{Files: sessionFiles(t, "sub-01", testsupport.PCASLMetadata())})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if out.Saved || out.ArtifactsDir != "" {
		t.Fatalf("expected unsaved run, got %#v", out)
	}
	if _, err := svc.Get(context.Background(), out.RunID); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, _ := newService(t, cfg)
	ctx := context.Background()

	tests := []struct {
		name  string
		files []ingest.File
	}{
		{"no files", nil},
		{"bad extension", []ingest.File{{Name: "scan.txt", Data: []byte("x")}}},
		{"bad json", []ingest.File{{Name: "sub-01_asl.json", Data: []byte("{")}}},
		{"bad tsv header", []ingest.File{
			{Name: "sub-01_asl.json", Data: []byte("{}")},
			{Name: "sub-01_aslcontext.tsv", Data: []byte("type\ncontrol\n")},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, api.Submission{Files: tt.files, Save: true})
			if !errors.Is(err, api.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestSubmitKeepsFindingsOutOfErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSuppressOnMajor(true))
	svc, _ := newService(t, cfg)

	broken := testsupport.With(testsupport.PCASLMetadata(), map[string]any{"MRAcquisitionType": nil})
	out, err := svc.Submit(context.Background(), api.Submission{Files: sessionFiles(t, "sub-01", broken), Save: true})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	resp := out.Response()
	if !resp.Suppressed || !resp.MajorErrors.Has("MRAcquisitionType") {
		t.Fatalf("expected suppressed report with major error, got %#v", resp.MajorErrors)
	}
	detail, err := svc.Get(context.Background(), out.RunID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if detail.Status != "major errors" || !detail.Suppressed {
		t.Fatalf("unexpected summary %#v", detail.RunSummary)
	}
}

func TestArtifactPathErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, _ := newService(t, cfg)
	ctx := context.Background()

	if _, err := svc.ArtifactPath(ctx, "missing", "report"); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.ArtifactPath(ctx, "missing", "values"); !errors.Is(err, api.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}
}

func TestPruneRemovesArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, st := newService(t, cfg)
	ctx := context.Background()

	out, err := svc.Submit(ctx, api.Submission{Files: sessionFiles(t, "sub-01", testsupport.PCASLMetadata()), Save: true})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	testsupport.SaveRun(t, st, &store.Run{ID: "recent", CreatedAt: time.Now()})

	// Move the submitted run back in time by re-saving it under an old timestamp.
	old, err := st.Get(ctx, out.RunID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := st.Delete(ctx, out.RunID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	old.CreatedAt = time.Now().AddDate(0, 0, -60)
	testsupport.SaveRun(t, st, old)

	removed, err := svc.Prune(ctx, 30)
	if err != nil {
		t.Fatalf("Prune returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(out.ArtifactsDir); !os.IsNotExist(err) {
		t.Fatalf("expected artifacts to be removed, stat err = %v", err)
	}
	if n, _ := svc.Prune(ctx, 0); n != 0 {
		t.Fatal("retention 0 must disable pruning")
	}
}
