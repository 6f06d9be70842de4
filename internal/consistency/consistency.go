package consistency

import (
	"fmt"
	"math"
	"strings"

	"aslreport/internal/schema"
	"aslreport/internal/session"
)

// Classification is the agreement verdict for one field.
type Classification string

const (
	Consistent             Classification = "consistent"
	InconsistentMajority   Classification = "inconsistent-with-majority"
	InconsistentNoMajority Classification = "inconsistent-no-majority"
)

// Mismatch names the kind of disagreement found.
type Mismatch string

const (
	MismatchNone         Mismatch = ""
	MismatchValues       Mismatch = "values"
	MismatchRange        Mismatch = "range"
	MismatchArrayLengths Mismatch = "array-lengths"
	MismatchMixedShapes  Mismatch = "mixed-shapes"
)

// Prefix starts every inconsistency message.
const Prefix = "INCONSISTENCY: "

// LengthGroup lists the sources that reported sequences of one length.
type LengthGroup struct {
	Length  int
	Sources []string
}

// Result is the outcome of reconciling one field.
type Result struct {
	Classification Classification
	Mismatch       Mismatch
	Severity       schema.Severity
	Message        string
	Concise        string
	// Representative is the majority value for inconsistent fields and the
	// first observed value for consistent ones.
	Representative    session.Value
	HasRepresentative bool
	RangeText         string
	LengthGroups      []LengthGroup
	// Index is the offending array position for per-index range
	// mismatches, -1 otherwise.
	Index int
}

// Inconsistent reports whether the field disagreed at any tier.
func (r Result) Inconsistent() bool {
	return r.Severity != schema.SeverityNone
}

// Reconcile classifies the agreement of observations under rule. It never
// fails: values that do not fit the comparison kind are ignored for numeric
// rules and compared by canonical form otherwise.
func Reconcile(rule schema.ConsistencyRule, obs []session.Observation) Result {
	res := Result{Classification: Consistent, Index: -1}
	if len(obs) == 0 {
		return res
	}
	tally := TallyObservations(obs)
	res.RangeText = tally.RangeText()

	switch rule.Compare {
	case schema.CompareNumeric:
		reconcileNumeric(rule, obs, &res)
	default:
		reconcileValues(obs, tally, &res)
	}

	if res.Severity == schema.SeverityError && rule.Major {
		res.Severity = schema.SeverityMajor
	}
	if res.Severity == schema.SeverityNone {
		res.Mismatch = MismatchNone
		res.Representative = obs[0].Value.Unwrap()
		res.HasRepresentative = true
		return res
	}
	if tally.HasMajority {
		res.Classification = InconsistentMajority
		res.Representative = tally.Majority
		res.HasRepresentative = true
	} else {
		res.Classification = InconsistentNoMajority
	}
	return res
}

func reconcileValues(obs []session.Observation, tally Tally, res *Result) {
	if len(tally.Counts) < 2 {
		return
	}
	verbose := make([]string, 0, len(tally.Counts))
	concise := make([]string, 0, len(tally.Counts))
	for _, c := range tally.Counts {
		key := c.Value.Key()
		var sources []string
		for _, o := range obs {
			if o.Value.Unwrap().Key() == key {
				sources = append(sources, o.Source)
			}
		}
		verbose = append(verbose, fmt.Sprintf("'%s' (%d): %s", c.Value, c.Count, list(sources)))
		concise = append(concise, fmt.Sprintf("'%s'", c.Value))
	}
	res.Mismatch = MismatchValues
	res.Severity = schema.SeverityError
	res.Message = Prefix + strings.Join(verbose, "; ")
	res.Concise = Prefix + strings.Join(concise, ", ")
}

func reconcileNumeric(rule schema.ConsistencyRule, obs []session.Observation, res *Result) {
	var scalars, arrays []session.Observation
	for _, o := range obs {
		switch o.Value.Kind() {
		case session.KindNumber:
			scalars = append(scalars, o)
		case session.KindNumbers:
			arrays = append(arrays, o)
		}
	}
	switch {
	case len(arrays) == 0 && len(scalars) == 0:
		return
	case len(arrays) == 0:
		spread(rule, scalars, res)
	case len(scalars) == 0:
		if groups := lengthGroups(arrays); len(groups) > 1 {
			parts := make([]string, len(groups))
			for i, g := range groups {
				parts[i] = fmt.Sprintf("%d: %s", g.Length, list(g.Sources))
			}
			res.Mismatch = MismatchArrayLengths
			res.Severity = schema.SeverityError
			res.LengthGroups = groups
			res.Message = Prefix + "Inconsistent array lengths. Unique lengths: {" + strings.Join(parts, ", ") + "}"
			res.Concise = Prefix + "Inconsistent array lengths."
			return
		}
		perIndex(rule, arrays, res)
	default:
		var single, multi []string
		unwrapped := make([]session.Observation, 0, len(scalars)+len(arrays))
		for _, o := range obs {
			switch {
			case o.Value.Kind() == session.KindNumber:
				single = append(single, o.Source)
				unwrapped = append(unwrapped, o)
			case o.Value.Kind() == session.KindNumbers && o.Value.Len() == 1:
				single = append(single, o.Source)
				unwrapped = append(unwrapped, session.Observation{Source: o.Source, Value: o.Value.Unwrap()})
			case o.Value.Kind() == session.KindNumbers:
				multi = append(multi, o.Source)
			}
		}
		if len(multi) > 0 {
			res.Mismatch = MismatchMixedShapes
			res.Severity = schema.SeverityError
			res.Message = fmt.Sprintf("%sMixed single values and arrays. Single value sessions (%d): %s, Array sessions (%d): %s",
				Prefix, len(single), list(single), len(multi), list(multi))
			res.Concise = Prefix + "Mixed single values and arrays."
			return
		}
		spread(rule, unwrapped, res)
	}
}

// spread applies the tolerance rule to scalar observations.
func spread(rule schema.ConsistencyRule, obs []session.Observation, res *Result) {
	values := make([]float64, len(obs))
	sources := make([]string, len(obs))
	for i, o := range obs {
		values[i], _ = o.Value.Float()
		sources[i] = o.Source
	}
	sev := tier(rule, values)
	if sev == schema.SeverityNone {
		return
	}
	lo, hi := bounds(values)
	summary := Summarize(values, sources).String()
	res.Mismatch = MismatchRange
	res.Severity = sev
	switch {
	case rule.ErrorTolerance == nil && rule.WarningTolerance == nil:
		res.Message = Prefix + "Values vary. " + summary
		res.Concise = fmt.Sprintf("%sValues vary. The range is (%s, %s).", Prefix, num(lo), num(hi))
	case sev == schema.SeverityError:
		limit := num(*rule.ErrorTolerance)
		res.Message = fmt.Sprintf("%sValues vary more than allowed %s. %s", Prefix, limit, summary)
		res.Concise = fmt.Sprintf("%sValues (%s, %s) vary more than the allowed variation %s.", Prefix, num(lo), num(hi), limit)
	default:
		phrase := slightPhrase(rule)
		res.Message = fmt.Sprintf("%sValues vary slightly %s. %s", Prefix, phrase, summary)
		res.Concise = fmt.Sprintf("%sValues (%s, %s) vary slightly %s.", Prefix, num(lo), num(hi), phrase)
	}
}

// perIndex applies the tolerance rule at every position of equal-length
// sequences and reports the first position that fails it.
func perIndex(rule schema.ConsistencyRule, obs []session.Observation, res *Result) {
	length := obs[0].Value.Len()
	worst, at := schema.SeverityNone, -1
	for i := 0; i < length && worst == schema.SeverityNone; i++ {
		column := make([]float64, len(obs))
		for j, o := range obs {
			fs, _ := o.Value.Floats()
			column[j] = fs[i]
		}
		worst, at = tier(rule, column), i
	}
	if worst == schema.SeverityNone {
		return
	}

	column := make([]float64, len(obs))
	pairs := make([]string, len(obs))
	for j, o := range obs {
		fs, _ := o.Value.Floats()
		column[j] = fs[at]
		pairs[j] = fmt.Sprintf("(%s, %s)", o.Source, num(fs[at]))
	}
	lo, hi := bounds(column)
	values := "[" + strings.Join(pairs, ", ") + "]"

	res.Mismatch = MismatchRange
	res.Severity = worst
	res.Index = at
	switch {
	case rule.ErrorTolerance == nil && rule.WarningTolerance == nil:
		res.Message = fmt.Sprintf("%sIndex %d of arrays vary. Values: %s", Prefix, at, values)
		res.Concise = fmt.Sprintf("%sIndex %d of arrays vary. The range is (%s-%s).", Prefix, at, num(lo), num(hi))
	case worst == schema.SeverityError:
		limit := num(*rule.ErrorTolerance)
		res.Message = fmt.Sprintf("%sValues in arrays vary more than allowed %s at index %d. Values: %s", Prefix, limit, at, values)
		res.Concise = fmt.Sprintf("%sValues in arrays vary more than allowed %s at index %d (%s-%s).", Prefix, limit, at, num(lo), num(hi))
	default:
		phrase := slightPhrase(rule)
		res.Message = fmt.Sprintf("%sValues in arrays vary slightly %s at index %d. Values: %s", Prefix, phrase, at, values)
		res.Concise = fmt.Sprintf("%sValues in arrays vary slightly %s at index %d (%s-%s).", Prefix, phrase, at, num(lo), num(hi))
	}
}

// tier grades the spread of values. Without any tolerance every difference
// is an error.
func tier(rule schema.ConsistencyRule, values []float64) schema.Severity {
	if len(values) < 2 {
		return schema.SeverityNone
	}
	lo, hi := bounds(values)
	width := hi - lo
	if rule.ErrorTolerance == nil && rule.WarningTolerance == nil {
		if width > 0 {
			return schema.SeverityError
		}
		return schema.SeverityNone
	}
	if rule.ErrorTolerance != nil && exceeds(width, *rule.ErrorTolerance) {
		return schema.SeverityError
	}
	if rule.WarningTolerance != nil && exceeds(width, *rule.WarningTolerance) {
		return schema.SeverityWarning
	}
	return schema.SeverityNone
}

// exceeds compares a spread with a tolerance, ignoring binary rounding
// residue from subtraction.
func exceeds(width, tolerance float64) bool {
	return width-tolerance > 1e-9*math.Max(1, math.Abs(tolerance))
}

func slightPhrase(rule schema.ConsistencyRule) string {
	if rule.ErrorTolerance != nil {
		return "within " + num(*rule.ErrorTolerance)
	}
	return "beyond " + num(*rule.WarningTolerance)
}

func bounds(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func lengthGroups(obs []session.Observation) []LengthGroup {
	var groups []LengthGroup
	index := make(map[int]int)
	for _, o := range obs {
		n := o.Value.Len()
		i, ok := index[n]
		if !ok {
			i = len(groups)
			index[n] = i
			groups = append(groups, LengthGroup{Length: n})
		}
		groups[i].Sources = append(groups[i].Sources, o.Source)
	}
	return groups
}

func list(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}
