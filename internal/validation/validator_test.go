package validation_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"aslreport/internal/schema"
	"aslreport/internal/session"
	"aslreport/internal/validation"
)

const testRules = `
major:
  - name: ArterialSpinLabelingType
    type: string
    allowed: [PASL, PCASL, CASL]
required:
  - name: EchoTime
    type: number
    min_error: 0
  - name: LabelingDuration
    type: number
    when:
      ArterialSpinLabelingType: [PCASL, CASL]
  - name: AcquisitionVoxelSize
    type: number_array
recommended:
  - name: LabelingDistance
    type: number
  - name: Notes
    type: string
consistency:
  ArterialSpinLabelingType: {compare: string, major: true}
  EchoTime: {compare: numeric, error_tolerance: 1}
  AcquisitionVoxelSize: {compare: numeric, error_tolerance: 0.1}
`

func mustTables(t *testing.T) *schema.Tables {
	t.Helper()
	tables, err := schema.Parse([]byte(testRules))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	return tables
}

func newSession(source string, fields map[string]session.Value) *session.Session {
	s := session.New(source)
	for k, v := range fields {
		s.Set(k, v)
	}
	return s
}

func TestValidateCleanFieldRecordsValuesInOrder(t *testing.T) {
	batch := []*session.Session{
		newSession("s1", map[string]session.Value{"ArterialSpinLabelingType": session.String("PCASL"), "Notes": session.String("b")}),
		newSession("s2", map[string]session.Value{"ArterialSpinLabelingType": session.String("PCASL"), "Notes": session.String("a")}),
	}
	out := validation.New(mustTables(t)).Validate(batch)

	if out.Errors.Has("Notes") || out.Warnings.Has("Notes") || out.MajorErrors.Has("Notes") {
		t.Fatal("expected no findings for Notes")
	}
	want := []session.Observation{
		{Source: "s1", Value: session.String("b")},
		{Source: "s2", Value: session.String("a")},
	}
	if !reflect.DeepEqual(out.Observed("Notes"), want) {
		t.Fatalf("values = %+v, want %+v", out.Observed("Notes"), want)
	}
	// Recommended fields are never reported missing.
	if out.Errors.Has("LabelingDistance") {
		t.Fatal("expected missing recommended field to be silent")
	}
	if _, ok := out.Values["LabelingDistance"]; !ok {
		t.Fatal("expected every field to have a value entry")
	}
}

func TestValidateMissingInFiles(t *testing.T) {
	batch := []*session.Session{
		newSession("s1", map[string]session.Value{"ArterialSpinLabelingType": session.String("PCASL"), "EchoTime": session.Int(-1)}),
		newSession("s2", map[string]session.Value{"ArterialSpinLabelingType": session.String("PCASL")}),
		newSession("s3", map[string]session.Value{"ArterialSpinLabelingType": session.String("PCASL"), "EchoTime": session.Int(-1)}),
	}
	out := validation.New(mustTables(t)).Validate(batch)

	want := []validation.Finding{{Message: validation.MissingMessage, Sources: []string{"s2"}}}
	if !reflect.DeepEqual(out.Errors["EchoTime"], want) {
		t.Fatalf("EchoTime errors = %+v, want %+v", out.Errors["EchoTime"], want)
	}
	if len(out.Observed("EchoTime")) != 2 {
		t.Fatalf("expected present values to be recorded, got %+v", out.Observed("EchoTime"))
	}
}

func TestValidateApplicability(t *testing.T) {
	batch := []*session.Session{
		newSession("pasl", map[string]session.Value{"ArterialSpinLabelingType": session.String("PASL")}),
		newSession("pcasl", map[string]session.Value{"ArterialSpinLabelingType": session.String("PCASL")}),
		newSession("none", map[string]session.Value{}),
	}
	out := validation.New(mustTables(t)).Validate(batch)

	got := out.Errors["LabelingDuration"]
	if len(got) != 1 || !reflect.DeepEqual(got[0].Sources, []string{"pcasl"}) {
		t.Fatalf("expected only pcasl to miss LabelingDuration, got %+v", got)
	}
	major := out.MajorErrors["ArterialSpinLabelingType"]
	if len(major) != 1 || major[0].Message != validation.MissingMessage || !reflect.DeepEqual(major[0].Sources, []string{"none"}) {
		t.Fatalf("unexpected major findings %+v", major)
	}
	if !out.HasMajor() {
		t.Fatal("expected HasMajor")
	}
}

func TestValidateGroupsPerFileMessagesAndConsistency(t *testing.T) {
	batch := []*session.Session{
		newSession("s1", map[string]session.Value{"ArterialSpinLabelingType": session.String("PCASL"), "EchoTime": session.Int(-2)}),
		newSession("s2", map[string]session.Value{"ArterialSpinLabelingType": session.String("PCASL"), "EchoTime": session.Int(-2)}),
		newSession("s3", map[string]session.Value{"ArterialSpinLabelingType": session.String("CASL"), "EchoTime": session.Int(10)}),
	}
	out := validation.New(mustTables(t)).Validate(batch)

	errs := out.Errors["EchoTime"]
	if len(errs) != 2 {
		t.Fatalf("expected consistency and bound findings, got %+v", errs)
	}
	if !errs[0].Inconsistency || !reflect.DeepEqual(errs[0].Sources, []string{"s1", "s2", "s3"}) {
		t.Fatalf("expected consistency finding first, got %+v", errs[0])
	}
	if errs[1].Message != "Value must be > 0" || !reflect.DeepEqual(errs[1].Sources, []string{"s1", "s2"}) {
		t.Fatalf("expected grouped bound finding, got %+v", errs[1])
	}

	if !out.MajorErrors.HasInconsistency("ArterialSpinLabelingType") {
		t.Fatal("expected major-tier inconsistency for ArterialSpinLabelingType")
	}
	lines := out.Inconsistencies(schema.SeverityMajor)
	if len(lines) != 1 || lines[0] != "ArterialSpinLabelingType: 'PCASL', 'CASL'" {
		t.Fatalf("unexpected digest %q", lines)
	}
}

func TestValidateArrayLengthMismatch(t *testing.T) {
	batch := []*session.Session{
		newSession("s1", map[string]session.Value{"AcquisitionVoxelSize": session.Numbers(0, 0, 0)}),
		newSession("s2", map[string]session.Value{"AcquisitionVoxelSize": session.Numbers(0, 0)}),
		newSession("s3", map[string]session.Value{"AcquisitionVoxelSize": session.Numbers(0, 0, 0)}),
	}
	out := validation.New(mustTables(t)).Validate(batch)
	errs := out.ErrorsConcise["AcquisitionVoxelSize"]
	if len(errs) != 1 || errs[0].Message != "INCONSISTENCY: Inconsistent array lengths." {
		t.Fatalf("unexpected findings %+v", errs)
	}
}

func TestValidateInvariantAndDeterminism(t *testing.T) {
	tables, err := schema.Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	batch := []*session.Session{
		newSession("a", map[string]session.Value{
			"ArterialSpinLabelingType": session.String("PCASL"),
			"EchoTime":                 session.Number(12.5),
			"FlipAngle":                session.Int(90),
		}),
		newSession("b", map[string]session.Value{
			"ArterialSpinLabelingType": session.String("PASL"),
			"EchoTime":                 session.Int(30),
			"FlipAngle":                session.String("ninety"),
		}),
	}
	v := validation.New(tables)
	first := v.Validate(batch)
	second := v.Validate(batch)

	for _, m := range []validation.Findings{
		first.MajorErrors, first.MajorErrorsConcise, first.Errors,
		first.ErrorsConcise, first.Warnings, first.WarningsConcise,
	} {
		for field := range m {
			if _, ok := first.Values[field]; !ok {
				t.Fatalf("field %s has findings but no value entry", field)
			}
		}
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("expected identical output for identical input")
	}
}

func TestOutcomeAddKeepsInvariant(t *testing.T) {
	out := validation.NewOutcome()
	out.Add("m0_error", schema.SeverityError, "aslcontext.tsv is missing", "aslcontext.tsv is missing", nil, false)
	if _, ok := out.Values["m0_error"]; !ok {
		t.Fatal("expected Add to register the field")
	}
	majors, errs, warns := out.Counts()
	if majors != 0 || errs != 1 || warns != 0 {
		t.Fatalf("unexpected counts %d/%d/%d", majors, errs, warns)
	}
}
