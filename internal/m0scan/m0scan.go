// Package m0scan cross-checks ASL sessions against their M0 calibration data.
//
// Analyze compares the declared M0Type with the presence of a separate M0
// document or m0scan volumes, compares acquisition parameters between ASL and
// M0 documents, moves the M0 repetition time out of the ASL
// RepetitionTimePreparation array, and derives the M0 sentence of the report.
package m0scan

import (
	"fmt"
	"math"

	"aslreport/internal/normalize"
	"aslreport/internal/schema"
	"aslreport/internal/session"
)

// M0 types.
const (
	TypeSeparate = "Separate"
	TypeIncluded = "Included"
	TypeEstimate = "Estimate"
	TypeAbsent   = "Absent"
)

// Outcome keys used for the findings of this stage.
const (
	ErrorKey   = "m0_error"
	WarningKey = "m0_warning"
)

// Report sentences.
const (
	SentenceEstimate     = "A single M0 scaling value is provided for CBF quantification"
	SentenceAbsentNoBS   = "No m0-scan was acquired, a control image without background suppression was used for M0 estimation."
	SentenceAbsentBS     = "No m0-scan was acquired, but there doesn't always exist a control image without background suppression."
	SentenceAcquired     = "M0 was acquired with the same readout and without background suppression."
	SentenceInconsistent = "There is inconsistency in parameters between M0 and ASL scans."
)

// MessageTRMismatch is recorded when M0 repetition times disagree.
const MessageTRMismatch = "Different \"RepetitionTimePreparation\" parameters for M0"

const (
	defaultErrorTolerance   = 1e-4
	defaultWarningTolerance = 1e-5
	trTolerance             = 1e-5
	splitTolerance          = 1e-4
)

// ComparedFields are compared between an ASL document and its M0 document.
var ComparedFields = []string{
	"EchoTime",
	"FlipAngle",
	"MagneticFieldStrength",
	"MRAcquisitionType",
	"PulseSequenceType",
}

// Scan is one ASL session with its optional companions. Sessions are expected
// to be normalized already.
type Scan struct {
	ASL *session.Session
	// M0 is the separate M0 document, nil when none was supplied.
	M0 *session.Session
	// Context is the aslcontext volume sequence; HasContext is false when
	// the session came without one.
	Context       []string
	ContextSource string
	HasContext    bool
}

// Result collects the findings and report inputs of the stage.
type Result struct {
	Errors   []string
	Warnings []string
	// TR is the agreed M0 repetition time in milliseconds.
	TR       *float64
	Sentence string
}

// Analyze checks every scan. The ASL sessions are modified in place when
// M0 volumes are split out of RepetitionTimePreparation. Consistency rules
// supply the ASL versus M0 tolerances.
func Analyze(scans []Scan, tables *schema.Tables) Result {
	var res Result
	var prepTimes []float64
	allAbsent, bsAllOff, allEstimate := true, true, len(scans) > 0

	for _, scan := range scans {
		asl := scan.ASL
		m0Type := text(asl, "M0Type")
		if m0Type != TypeAbsent {
			allAbsent = false
		}
		if m0Type != TypeEstimate {
			allEstimate = false
		}
		if bs, _ := get(asl, "BackgroundSuppression").Truth(); bs {
			bsAllOff = false
		}

		if scan.M0 != nil {
			switch m0Type {
			case TypeAbsent, TypeIncluded:
				res.Errors = append(res.Errors, fmt.Sprintf("Error: M0 type specified as '%s' for '%s', but '%s' is present", m0Type, asl.Source, scan.M0.Source))
			}
			errs, warns := compare(asl, scan.M0, tables)
			res.Errors = append(res.Errors, errs...)
			res.Warnings = append(res.Warnings, warns...)
			if tr, ok := firstNumber(get(scan.M0, "RepetitionTimePreparation")); ok {
				prepTimes = append(prepTimes, tr)
			}
		} else if m0Type == TypeSeparate {
			res.Errors = append(res.Errors, fmt.Sprintf("Error: M0 type specified as 'Separate' for '%s', but m0scan.json is not provided.", asl.Source))
		}

		if !scan.HasContext {
			res.Errors = append(res.Errors, fmt.Sprintf("Error: 'aslcontext.tsv' is missing for %s", asl.Source))
			continue
		}
		m0Volumes := normalize.CountVolumes(scan.Context, normalize.VolumeM0Scan)
		if m0Volumes == 0 {
			if scan.M0 == nil && !bsOff(asl) {
				res.Warnings = append(res.Warnings, bsWarning(asl))
			}
			continue
		}
		switch m0Type {
		case TypeAbsent, TypeSeparate:
			res.Errors = append(res.Errors, fmt.Sprintf("Error: m0 type is specified as '%s' for '%s', but '%s' contains m0scan.", m0Type, asl.Source, scan.ContextSource))
			continue
		}
		tr, msg, ok := splitRepetitionTime(asl, m0Volumes, scan.ContextSource)
		if msg != "" {
			res.Errors = append(res.Errors, msg)
		}
		if ok {
			prepTimes = append(prepTimes, tr)
		}
	}

	if allEstimate {
		res.Sentence = SentenceEstimate
		return res
	}
	if len(prepTimes) > 0 {
		if agree(prepTimes) {
			tr := prepTimes[0]
			res.TR = &tr
		} else {
			res.Errors = append(res.Errors, MessageTRMismatch)
		}
	}
	switch {
	case allAbsent && bsAllOff:
		res.Sentence = SentenceAbsentNoBS
	case allAbsent:
		res.Sentence = SentenceAbsentBS
	case len(res.Errors) == 0:
		res.Sentence = SentenceAcquired
	default:
		res.Sentence = SentenceInconsistent
	}
	return res
}

// splitRepetitionTime moves the repetition time of the M0 volumes out of the
// ASL RepetitionTimePreparation. A longer array drops its first m0Volumes
// entries; a constant array collapses to its single value.
func splitRepetitionTime(asl *session.Session, m0Volumes int, contextSource string) (float64, string, bool) {
	v, ok := asl.Get("RepetitionTimePreparation")
	if !ok {
		return 0, "", false
	}
	times, isArray := v.Floats()
	if !isArray {
		f, ok := v.Float()
		if !ok {
			return 0, "", false
		}
		times = []float64{f}
	}
	if len(times) == 0 {
		return 0, "", false
	}
	lo, hi := times[0], times[0]
	for _, t := range times {
		lo = math.Min(lo, t)
		hi = math.Max(hi, t)
	}
	switch {
	case len(times) > m0Volumes:
		asl.Set("RepetitionTimePreparation", session.Numbers(times[m0Volumes:]...).Unwrap())
		return times[0], "", true
	case hi-lo < splitTolerance:
		asl.Set("RepetitionTimePreparation", session.Whole(times[0]))
		return times[0], "", true
	}
	return 0, fmt.Sprintf("Error: 'RepetitionTimePreparation' array in ASL file '%s' is shorter than the number of 'm0scan' in TSV file '%s'", asl.Source, contextSource), false
}

// compare reports ASL versus M0 discrepancies. String parameters must match
// exactly. Numbers are compared against the consistency tolerances.
func compare(asl, m0 *session.Session, tables *schema.Tables) ([]string, []string) {
	var errs, warns []string
	for _, field := range ComparedFields {
		rule, ok := tables.ConsistencyFor(field)
		if !ok {
			continue
		}
		a, aok := asl.Get(field)
		b, bok := m0.Get(field)
		switch rule.Compare {
		case schema.CompareString:
			if aok != bok || !a.Equal(b) {
				errs = append(errs, fmt.Sprintf("Discrepancy in '%s' for ASL file '%s' and M0 file '%s': ASL value = %s, M0 value = %s",
					field, asl.Source, m0.Source, render(a, aok), render(b, bok)))
			}
		case schema.CompareNumeric:
			x, xok := a.Float()
			y, yok := b.Float()
			if !aok || !bok || !xok || !yok {
				continue
			}
			errTol, warnTol := tolerances(rule)
			diff := math.Round(math.Abs(x-y)*1e9) / 1e9
			prefix := fmt.Sprintf("Discrepancy in '%s' for ASL file '%s' and M0 file '%s': ASL value = %s, M0 value = %s, difference = %s",
				field, asl.Source, m0.Source, session.FormatNumber(x), session.FormatNumber(y), session.FormatNumber(diff))
			switch {
			case diff > errTol:
				errs = append(errs, "ERROR: "+prefix+", exceeds error threshold "+session.FormatNumber(errTol))
			case diff > warnTol:
				warns = append(warns, "WARNING: "+prefix+", exceeds warning threshold "+session.FormatNumber(warnTol))
			}
		}
	}
	return errs, warns
}

func tolerances(rule schema.ConsistencyRule) (float64, float64) {
	errTol, warnTol := defaultErrorTolerance, defaultWarningTolerance
	if rule.ErrorTolerance != nil {
		errTol = *rule.ErrorTolerance
	}
	if rule.WarningTolerance != nil {
		warnTol = *rule.WarningTolerance
	}
	return errTol, warnTol
}

func bsWarning(asl *session.Session) string {
	if asl.Has("BackgroundSuppressionPulseTime") {
		return fmt.Sprintf("For %s, no M0 is provided and BS pulses with known timings are on. BS-pulse efficiency has to be calculated to enable absolute quantification.", asl.Source)
	}
	return fmt.Sprintf("For %s, no M0 is provided and BS pulses with unknown timings are on, only a relative quantification is possible.", asl.Source)
}

func bsOff(s *session.Session) bool {
	on, _ := get(s, "BackgroundSuppression").Truth()
	return !on
}

func agree(times []float64) bool {
	for _, t := range times[1:] {
		if math.Abs(t-times[0]) >= trTolerance {
			return false
		}
	}
	return true
}

func firstNumber(v session.Value) (float64, bool) {
	if fs, ok := v.Floats(); ok {
		if len(fs) == 0 {
			return 0, false
		}
		return fs[0], true
	}
	return v.Float()
}

func get(s *session.Session, field string) session.Value {
	v, _ := s.Get(field)
	return v
}

func text(s *session.Session, field string) string {
	t, _ := get(s, field).Text()
	return t
}

func render(v session.Value, ok bool) string {
	if !ok {
		return "missing"
	}
	return v.String()
}
