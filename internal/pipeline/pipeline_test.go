package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aslreport/internal/ingest"
	"aslreport/internal/logging"
	"aslreport/internal/m0scan"
	"aslreport/internal/pipeline"
	"aslreport/internal/report"
	"aslreport/internal/schema"
)

const pcaslDoc = `{
  "ArterialSpinLabelingType": "PCASL",
  "MRAcquisitionType": "3D",
  "PulseSequenceType": "3Dgrase",
  "MagneticFieldStrength": 3,
  "Manufacturer": "Siemens",
  "ManufacturersModelName": "Prisma",
  "EchoTime": 0.0125,
  "RepetitionTimePreparation": 4.5,
  "FlipAngle": 90,
  "BackgroundSuppression": false,
  "M0Type": "Separate",
  "AcquisitionVoxelSize": [3.5, 3.5, 4],
  "LabelingDuration": 1.8,
  "PostLabelingDelay": 2.0
}`

const m0Doc = `{
  "MRAcquisitionType": "3D",
  "PulseSequenceType": "3Dgrase",
  "MagneticFieldStrength": 3,
  "EchoTime": 0.0125,
  "FlipAngle": 90,
  "RepetitionTimePreparation": 6
}`

const contextTSV = "volume_type\ncontrol\nlabel\ncontrol\nlabel\n"

func runner(t *testing.T, opts pipeline.Options) *pipeline.Runner {
	t.Helper()
	tables, err := schema.Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	return pipeline.New(tables, opts, logging.NewNop())
}

func groups(t *testing.T, files ...ingest.File) []ingest.Group {
	t.Helper()
	out, err := ingest.GroupFiles(files)
	if err != nil {
		t.Fatalf("GroupFiles returned error: %v", err)
	}
	return out
}

func session(prefix, asl string) []ingest.File {
	return []ingest.File{
		{Name: prefix + "_asl.json", Data: []byte(asl)},
		{Name: prefix + "_m0scan.json", Data: []byte(m0Doc)},
		{Name: prefix + "_aslcontext.tsv", Data: []byte(contextTSV)},
	}
}

func TestRunProducesReport(t *testing.T) {
	files := append(session("sub-01", pcaslDoc), session("sub-02", pcaslDoc)...)
	res, err := runner(t, pipeline.Options{SuppressOnMajor: true}).Run(context.Background(), pipeline.Input{
		Groups:     groups(t, files...),
		SliceCount: 20,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Suppressed || res.Outcome.HasMajor() {
		t.Fatalf("unexpected major errors %+v", res.Outcome.MajorErrors)
	}
	if len(res.Sources) != 6 {
		t.Fatalf("sources = %v", res.Sources)
	}
	for _, want := range []string{
		"ASL was acquired on a 3T Siemens Prisma scanner using single-PLD PCASL labeling and a 3D GRASE readout",
		"TE = 12.5ms, TR = 4500ms, flip angle 90 degrees, in-plane resolution 3.5x3.5mm^2, 20 slices with 4mm thickness",
		"labeling duration 1800ms, PLD 2000ms, without background suppression.",
		"In total, 2 control-label pairs were acquired.",
		" M0 was acquired with the same readout and without background suppression. TR for M0 is 6000ms.",
	} {
		if !strings.Contains(res.ReportText, want) {
			t.Errorf("expected %q in report:\n%s", want, res.ReportText)
		}
	}
	if res.Outcome.Errors.Has(m0scan.ErrorKey) {
		t.Fatalf("unexpected M0 errors %+v", res.Outcome.Errors[m0scan.ErrorKey])
	}
}

func TestRunSuppressesReportOnMajorErrors(t *testing.T) {
	casl := strings.Replace(pcaslDoc, `"PCASL"`, `"CASL"`, 1)
	files := append(session("sub-01", pcaslDoc), session("sub-02", casl)...)
	in := pipeline.Input{Groups: groups(t, files...)}

	res, err := runner(t, pipeline.Options{SuppressOnMajor: true}).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !res.Suppressed || res.ReportText != report.SuppressedText {
		t.Fatalf("expected suppressed report, got %q", res.ReportText)
	}
	if len(res.Inconsistencies.Major) != 1 || !strings.HasPrefix(res.Inconsistencies.Major[0], "ArterialSpinLabelingType: ") {
		t.Fatalf("unexpected digest %+v", res.Inconsistencies)
	}

	res, err = runner(t, pipeline.Options{}).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Suppressed || !strings.HasPrefix(res.ReportText, "ASL was acquired") {
		t.Fatalf("expected report when suppression is off, got %q", res.ReportText)
	}
}

func TestRunRecordsM0Findings(t *testing.T) {
	files := []ingest.File{{Name: "sub-01_asl.json", Data: []byte(pcaslDoc)}}
	res, err := runner(t, pipeline.Options{}).Run(context.Background(), pipeline.Input{Groups: groups(t, files...)})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var messages []string
	for _, f := range res.Outcome.Errors[m0scan.ErrorKey] {
		messages = append(messages, f.Message)
	}
	want := []string{
		"Error: M0 type specified as 'Separate' for 'sub-01_asl.json', but m0scan.json is not provided.",
		"Error: 'aslcontext.tsv' is missing for sub-01_asl.json",
	}
	if strings.Join(messages, "|") != strings.Join(want, "|") {
		t.Fatalf("m0 errors = %q", messages)
	}
	if _, ok := res.Outcome.Values[m0scan.ErrorKey]; !ok {
		t.Fatal("expected m0_error to have a value entry")
	}
	if !strings.Contains(res.ReportText, m0scan.SentenceInconsistent) {
		t.Fatalf("expected inconsistent M0 sentence, got %q", res.ReportText)
	}
}

func TestRunDoesNotModifyInput(t *testing.T) {
	in := pipeline.Input{Groups: groups(t, session("sub-01", pcaslDoc)...)}
	if _, err := runner(t, pipeline.Options{}).Run(context.Background(), in); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	v, _ := in.Groups[0].ASL.Get("EchoTime")
	if v.String() != "0.0125" {
		t.Fatalf("input session was modified: EchoTime = %s", v)
	}
	if in.Groups[0].ASL.Has("PLDType") {
		t.Fatal("input session gained a derived field")
	}
}

func TestRunErrors(t *testing.T) {
	r := runner(t, pipeline.Options{})
	if _, err := r.Run(context.Background(), pipeline.Input{}); !errors.Is(err, pipeline.ErrNoSessions) {
		t.Fatalf("expected ErrNoSessions, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, pipeline.Input{Groups: groups(t, session("sub-01", pcaslDoc)...)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
