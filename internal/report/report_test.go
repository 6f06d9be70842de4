package report

import (
	"strings"
	"testing"

	"aslreport/internal/schema"
	"aslreport/internal/session"
	"aslreport/internal/validation"
)

type observed map[string][]session.Value

func outcomeOf(fields observed, order ...string) *validation.Outcome {
	out := validation.NewOutcome()
	for _, field := range order {
		for i, v := range fields[field] {
			out.Observe(field, session.Observation{Source: "s" + string(rune('1'+i)), Value: v})
		}
	}
	return out
}

func pcaslOutcome() *validation.Outcome {
	fields := observed{
		"MagneticFieldStrength":             {session.Int(3)},
		"Manufacturer":                      {session.String("Siemens")},
		"ManufacturersModelName":            {session.String("Prisma")},
		"PLDType":                           {session.String("single-PLD")},
		"ArterialSpinLabelingType":          {session.String("PCASL")},
		"MRAcquisitionType":                 {session.String("3D")},
		"PulseSequenceType":                 {session.String("3Dgrase")},
		"EchoTime":                          {session.Number(12.5)},
		"RepetitionTimePreparation":         {session.Int(4000)},
		"FlipAngle":                         {session.Int(90)},
		"AcquisitionVoxelSize":              {session.Numbers(3.5, 3.5, 4)},
		"LabelingDuration":                  {session.Int(1800)},
		"PostLabelingDelay":                 {session.Int(2000)},
		"BackgroundSuppression":             {session.Bool(true)},
		"BackgroundSuppressionNumberPulses": {session.Int(2)},
		"BackgroundSuppressionPulseTime":    {session.Numbers(1000, 2000)},
		"ASLContextPattern":                 {session.String("control-label")},
		"TotalAcquiredPairs":                {session.Int(30)},
		"AcquisitionDuration":               {session.Int(330)},
	}
	order := make([]string, 0, len(fields))
	for field := range fields {
		order = append(order, field)
	}
	return outcomeOf(fields, order...)
}

func TestGenerateConsistentPCASL(t *testing.T) {
	tr := 5000.0
	r := Generate(Input{
		Outcome:    pcaslOutcome(),
		M0Sentence: "M0 was acquired with the same readout and without background suppression.",
		M0TR:       &tr,
		SliceCount: 20,
	})

	want := "ASL was acquired on a 3T Siemens Prisma scanner using single-PLD PCASL labeling and a 3D GRASE readout " +
		"with the following parameters: TE = 12.5ms, TR = 4000ms, flip angle 90 degrees, in-plane resolution 3.5x3.5mm^2, " +
		"20 slices with 4mm thickness, labeling duration 1800ms, PLD 2000ms, with background suppression with 2 pulses " +
		"at 1000ms and 2000ms after the start of labeling. In total, 30 control-label pairs were acquired in a 5:30min time."
	if r.ASL != want {
		t.Fatalf("ASL paragraph mismatch\n got: %s\nwant: %s", r.ASL, want)
	}
	wantM0 := " M0 was acquired with the same readout and without background suppression. TR for M0 is 5000ms."
	if r.M0 != wantM0 {
		t.Fatalf("M0 paragraph = %q, want %q", r.M0, wantM0)
	}
	if r.Text() != want+wantM0 {
		t.Fatalf("unexpected text %q", r.Text())
	}
	if r.Extended != "" || len(r.ExtendedParameters) != 0 {
		t.Fatal("expected no extended report unless requested")
	}
	if got := param(r.Parameters, "M0 TR"); got != "5000" {
		t.Fatalf("M0 TR parameter = %q", got)
	}
}

func TestGenerateInconsistentValues(t *testing.T) {
	out := outcomeOf(observed{
		"ArterialSpinLabelingType": {session.String("PCASL"), session.String("PCASL"), session.String("CASL")},
		"EchoTime":                 {session.Int(10), session.Int(10), session.Int(20)},
		"FlipAngle":                {session.Int(80), session.Int(90)},
		"ASLContextPattern":        {session.String("control-label"), session.String("label-control")},
	}, "ArterialSpinLabelingType", "EchoTime", "FlipAngle", "ASLContextPattern")
	out.Add("ArterialSpinLabelingType", schema.SeverityMajor, "x", "x", []string{"s1", "s2", "s3"}, true)
	out.Add("EchoTime", schema.SeverityError, "x", "x", []string{"s1", "s2", "s3"}, true)
	out.Add("FlipAngle", schema.SeverityError, "x", "x", []string{"s1", "s2"}, true)
	out.Add("ASLContextPattern", schema.SeverityError, "x", "x", []string{"s1", "s2"}, true)

	r := Generate(Input{Outcome: out})
	tests := []struct {
		name string
		want string
	}{
		{"Labeling Type", "(inconsistent, PCASL is the most common data)"},
		{"Echo Time", "(inconsistent, 10 is the most common data, Range: 10-20)"},
		{"Flip Angle", "(inconsistent, no common data, Range: 80-90)"},
		{"Manufacturer", "N/A"},
		{"Number of Slices", "N/A"},
	}
	for _, tc := range tests {
		if got := param(r.Parameters, tc.name); got != tc.want {
			t.Errorf("%s = %q, want %q", tc.name, got, tc.want)
		}
	}
	if !strings.Contains(r.ASL, "TE = (inconsistent, 10ms is the most common data, Range: 10-20)") {
		t.Errorf("expected inconsistent echo time in text, got %s", r.ASL)
	}
	if !strings.Contains(r.ASL, "there's no consistent control-label or label-control order") {
		t.Errorf("expected pattern note in text, got %s", r.ASL)
	}
	// The majority labeling type still selects the continuous labeling clause.
	if !strings.Contains(r.ASL, "labeling duration N/A") {
		t.Errorf("expected labeling duration clause, got %s", r.ASL)
	}
}

func TestGenerateWarningDriftKeepsFirstValue(t *testing.T) {
	out := outcomeOf(observed{
		"EchoTime": {session.Int(10), session.Number(10.05)},
	}, "EchoTime")
	out.Add("EchoTime", schema.SeverityWarning, "x", "x", []string{"s1", "s2"}, true)
	r := Generate(Input{Outcome: out})
	if got := param(r.Parameters, "Echo Time"); got != "10" {
		t.Fatalf("Echo Time = %q, want 10", got)
	}
}

func TestGeneratePASLBolus(t *testing.T) {
	out := outcomeOf(observed{
		"ArterialSpinLabelingType": {session.String("PASL")},
		"PostLabelingDelay":        {session.Int(1800)},
		"BolusCutOffFlag":          {session.Bool(true)},
		"BolusCutOffTechnique":     {session.String("Q2TIPS")},
		"BolusCutOffDelayTime":     {session.Numbers(700, 1600)},
		"LabelingSlabThickness":    {session.Int(100)},
		"BackgroundSuppression":    {session.Bool(false)},
		"TotalAcquiredPairs":       {session.Int(1)},
	}, "ArterialSpinLabelingType", "PostLabelingDelay", "BolusCutOffFlag", "BolusCutOffTechnique",
		"BolusCutOffDelayTime", "LabelingSlabThickness", "BackgroundSuppression", "TotalAcquiredPairs")
	r := Generate(Input{Outcome: out})

	for _, want := range []string{
		"inversion time 1800ms",
		"labeling slab thickness 100mm",
		"with bolus saturation using Q2TIPS pulse applied from 700ms to 1600ms after the labeling",
		"without background suppression.",
		"In total, 1 control-label pair was acquired.",
	} {
		if !strings.Contains(r.ASL, want) {
			t.Errorf("expected %q in %s", want, r.ASL)
		}
	}
	if strings.Contains(r.ASL, "labeling duration") {
		t.Errorf("pulsed labeling must not report a labeling duration: %s", r.ASL)
	}
}

func TestGenerateExtended(t *testing.T) {
	out := pcaslOutcome()
	for field, v := range map[string]session.Value{
		"VascularCrushing":             session.Bool(true),
		"VascularCrushingVENC":         session.Int(2),
		"PCASLType":                    session.String("balanced"),
		"LabelingPulseAverageGradient": session.Number(0.6),
		"LabelingPulseDuration":        session.Number(0.5),
	} {
		out.Observe(field, session.Observation{Source: "s1", Value: v})
	}
	r := Generate(Input{Outcome: out, Extended: true})

	want := " Vascular crushing was applied with a 2cm/s threshold." +
		" Balanced PCASL labeling was applied with the following pulse parameters: average pulse gradient 0.6mT/m, with 0.5ms pulses."
	if r.Extended != want {
		t.Fatalf("extended = %q, want %q", r.Extended, want)
	}
	if !strings.HasSuffix(r.Text(), "\n\n"+strings.TrimSpace(want)) {
		t.Fatalf("expected extended paragraph after a blank line, got %q", r.Text())
	}
	if got := param(r.ExtendedParameters, "PCASL Type"); got != "balanced" {
		t.Fatalf("PCASL Type = %q", got)
	}
}

func TestFormatters(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"delays pairs", countedDelays([]float64{1800, 1800, 2000, 2000, 2000, 2000}, false), "1800ms (1 volume), 2000ms (2 volumes)"},
		{"delays deltam", countedDelays([]float64{2000, 1800, 1800, 2000, 2000, 2000}, true), "1800ms (2 repeats), 2000ms (4 repeats)"},
		{"delays single", countedDelays([]float64{1500, 1500}, false), "1500ms"},
		{"pulse times", pulseTimes(session.Numbers(100, 200, 300)), "100ms, 200ms, and 300ms"},
		{"pulse time scalar", pulseTimes(session.Int(100)), "100ms"},
		{"duration", duration(session.Int(330)), "5:30min"},
		{"duration fraction", duration(session.Number(65.5)), "1:05min"},
		{"grase", pulseSequence(session.String("3Dgrase")), "GRASE"},
		{"epi", pulseSequence(session.String("EPI")), "EPI"},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s = %q, want %q", tc.name, tc.got, tc.want)
		}
	}
}

func TestJoinedModelNames(t *testing.T) {
	out := outcomeOf(observed{
		"ManufacturersModelName": {session.String("Skyra"), session.String("Prisma"), session.String("Prisma")},
	}, "ManufacturersModelName")
	if got := (lookup{outcome: out}).joined("ManufacturersModelName"); got != "Prisma/Skyra" {
		t.Fatalf("joined = %q", got)
	}
}

func TestSuppressed(t *testing.T) {
	if Suppressed().Text() != SuppressedText {
		t.Fatalf("unexpected suppressed text %q", Suppressed().Text())
	}
}

func param(params []Parameter, name string) string {
	for _, p := range params {
		if p.Name == name {
			return p.Value
		}
	}
	return "<absent>"
}
