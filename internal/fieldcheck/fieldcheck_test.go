package fieldcheck_test

import (
	"testing"

	"aslreport/internal/fieldcheck"
	"aslreport/internal/schema"
	"aslreport/internal/session"
)

func mustRule(t *testing.T, tables *schema.Tables, name string) schema.FieldRule {
	t.Helper()
	rule, _, ok := tables.Lookup(name)
	if !ok {
		t.Fatalf("rule %s not found", name)
	}
	return rule
}

func TestCheckMessages(t *testing.T) {
	tables, err := schema.Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}

	tests := []struct {
		name  string
		field string
		value session.Value
		want  fieldcheck.Result
	}{
		{"integer first", "TotalAcquiredPairs", session.Number(-1.5), fieldcheck.Result{Error: "Value must be an integer"}},
		{"exclusive lower bound", "TotalAcquiredPairs", session.Int(0), fieldcheck.Result{Error: "Value must be > 0"}},
		{"passes", "TotalAcquiredPairs", session.Int(30), fieldcheck.Result{}},
		{"inclusive upper bound", "FlipAngle", session.Number(360.5), fieldcheck.Result{Error: "Value must be <= 360"}},
		{"warning bound", "EchoTime", session.Int(250), fieldcheck.Result{Warning: "Value is unusually high (200)"}},
		{"error before warning", "EchoTime", session.Int(-5), fieldcheck.Result{Error: "Value must be > 0"}},
		{"array warning", "EchoTime", session.Numbers(12, 250), fieldcheck.Result{Warning: "Some numbers may be unusually high (200)"}},
		{"array size", "AcquisitionVoxelSize", session.Numbers(3, 3), fieldcheck.Result{Error: "Array must consist of exactly 3 numbers"}},
		{"array bound", "AcquisitionVoxelSize", session.Numbers(3, 0, 3), fieldcheck.Result{Error: "All numbers must be > 0"}},
		{"ascending", "BolusCutOffDelayTime", session.Numbers(800, 700), fieldcheck.Result{Error: "Numbers in the array are not in ascending order"}},
		{"scalar on number_or_array", "BolusCutOffDelayTime", session.Int(-1), fieldcheck.Result{Error: "Value must be >= 0"}},
		{"wrong shape", "PostLabelingDelay", session.String("1800"), fieldcheck.Result{Error: "Value must be a number or an array of numbers"}},
		{"boolean shape", "BackgroundSuppression", session.Int(1), fieldcheck.Result{Error: "Value must be a boolean (True or False)"}},
		{"case-insensitive membership", "M0Type", session.String("separate"), fieldcheck.Result{}},
		{"membership", "M0Type", session.String("Other"), fieldcheck.Result{Error: "Value must be one of ['Separate', 'Included', 'Estimate', 'Absent'], case-insensitive"}},
		{"major membership", "MRAcquisitionType", session.String("4D"), fieldcheck.Result{Major: "Value must be one of ['2D', '3D'], case-insensitive"}},
		{"major shape", "PulseSequenceType", session.Int(3), fieldcheck.Result{Major: "Value must be a string"}},
		{"free string", "PulseSequenceType", session.String("3D_GRASE"), fieldcheck.Result{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fieldcheck.Check(mustRule(t, tables, tt.field), tt.value)
			if got != tt.want {
				t.Fatalf("Check(%s, %s) = %+v, want %+v", tt.field, tt.value, got, tt.want)
			}
		})
	}
}

func TestResultSeverity(t *testing.T) {
	tests := []struct {
		result fieldcheck.Result
		want   schema.Severity
	}{
		{fieldcheck.Result{}, schema.SeverityNone},
		{fieldcheck.Result{Warning: "w"}, schema.SeverityWarning},
		{fieldcheck.Result{Error: "e"}, schema.SeverityError},
		{fieldcheck.Result{Major: "m"}, schema.SeverityMajor},
	}
	for _, tt := range tests {
		if got := tt.result.Severity(); got != tt.want {
			t.Errorf("Severity(%+v) = %v, want %v", tt.result, got, tt.want)
		}
		if tt.want == schema.SeverityNone && !tt.result.OK() {
			t.Errorf("expected empty result to be OK")
		}
	}
}
