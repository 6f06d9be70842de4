// Package normalize prepares metadata sessions for validation.
//
// It renames schema aliases to canonical field names, converts time-valued
// fields from seconds to milliseconds, and injects the derived PLDType,
// ASLContextPattern and TotalAcquiredPairs fields.
package normalize

import (
	"math"

	"aslreport/internal/session"
)

// TimeFields are converted from seconds to milliseconds.
var TimeFields = []string{
	"EchoTime",
	"RepetitionTimePreparation",
	"LabelingDuration",
	"BolusCutOffDelayTime",
	"BackgroundSuppressionPulseTime",
	"PostLabelingDelay",
}

// Derived field names.
const (
	FieldPLDType            = "PLDType"
	FieldContextPattern     = "ASLContextPattern"
	FieldTotalAcquiredPairs = "TotalAcquiredPairs"
)

// PLD type values.
const (
	MultiPLD  = "multi-PLD"
	SinglePLD = "single-PLD"
)

const snapTolerance = 1e-6

// Options control session normalization.
type Options struct {
	// Aliases maps alternative field names to canonical names.
	Aliases map[string]string
}

// Session returns a normalized copy of s. The input is not modified.
func Session(s *session.Session, opts Options) *session.Session {
	out := s.Clone()
	applyAliases(out, opts.Aliases)
	for _, field := range TimeFields {
		if v, ok := out.Get(field); ok {
			out.Set(field, ToMilliseconds(v))
		}
	}
	out.Set(FieldPLDType, session.String(PLDType(out)))
	return out
}

// applyAliases renames alias fields. A canonical field already present in
// the document wins over its alias.
func applyAliases(s *session.Session, aliases map[string]string) {
	for _, alias := range s.Names() {
		canonical, ok := aliases[alias]
		if !ok || canonical == alias {
			continue
		}
		v, _ := s.Get(alias)
		s.Delete(alias)
		if !s.Has(canonical) {
			s.Set(canonical, v)
		}
	}
}

// ToMilliseconds converts a number or numeric sequence from seconds to
// milliseconds. Other values are returned unchanged.
func ToMilliseconds(v session.Value) session.Value {
	switch v.Kind() {
	case session.KindNumber:
		f, _ := v.Float()
		return session.Whole(secondsToMillis(f))
	case session.KindNumbers:
		fs, _ := v.Floats()
		for i, f := range fs {
			fs[i] = secondsToMillis(f)
		}
		return session.Numbers(fs...)
	}
	return v
}

// secondsToMillis multiplies by 1000 and rounds to 3 decimals. Results
// within 1e-6 of an integer, in either unit, snap to that integer.
func secondsToMillis(seconds float64) float64 {
	ms := seconds * 1000
	if r := math.Round(ms); math.Abs(ms-r) < snapTolerance {
		return r
	}
	if r := math.Round(seconds); math.Abs(seconds-r) <= snapTolerance+1e-12 {
		return r * 1000
	}
	return math.Round(ms*1000) / 1000
}

// PLDType derives the delay pattern of a session: multi-PLD when any of
// PostLabelingDelay, EchoTime or LabelingDuration is a sequence holding more
// than one distinct value.
func PLDType(s *session.Session) string {
	for _, field := range []string{"PostLabelingDelay", "EchoTime", "LabelingDuration"} {
		v, ok := s.Get(field)
		if !ok || v.Kind() != session.KindNumbers {
			continue
		}
		fs, _ := v.Floats()
		if len(fs) < 2 {
			continue
		}
		for _, f := range fs[1:] {
			if f != fs[0] {
				return MultiPLD
			}
		}
	}
	return SinglePLD
}
