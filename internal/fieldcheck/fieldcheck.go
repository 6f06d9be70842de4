// Package fieldcheck evaluates a field rule against a single value.
//
// Checks run tier by tier (major, error, warning). The first failing check
// of a tier produces the only message for that value and lower tiers are not
// evaluated.
package fieldcheck

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"aslreport/internal/schema"
	"aslreport/internal/session"
)

// Result holds at most one non-empty message.
type Result struct {
	Major   string
	Error   string
	Warning string
}

// OK reports whether the value passed every check.
func (r Result) OK() bool {
	return r.Major == "" && r.Error == "" && r.Warning == ""
}

// Severity returns the tier of the failing check.
func (r Result) Severity() schema.Severity {
	switch {
	case r.Major != "":
		return schema.SeverityMajor
	case r.Error != "":
		return schema.SeverityError
	case r.Warning != "":
		return schema.SeverityWarning
	}
	return schema.SeverityNone
}

// Message returns the failing message, if any.
func (r Result) Message() string {
	switch {
	case r.Major != "":
		return r.Major
	case r.Error != "":
		return r.Error
	}
	return r.Warning
}

type mode int

const (
	modeScalar mode = iota
	modeArray
	modeString
	modeBool
)

// Check validates v against rule. A value whose kind does not fit the
// declared shape fails at the rule's top tier.
func Check(rule schema.FieldRule, v session.Value) Result {
	m, shapeMsg := dispatch(rule.Shape, v)
	if shapeMsg != "" {
		if rule.Major {
			return Result{Major: shapeMsg}
		}
		return Result{Error: shapeMsg}
	}
	if msg := firstFailure(rule.Majors, m, v); msg != "" {
		return Result{Major: msg}
	}
	if msg := firstFailure(rule.Errors, m, v); msg != "" {
		return Result{Error: msg}
	}
	if msg := firstFailure(rule.Warnings, m, v); msg != "" {
		return Result{Warning: msg}
	}
	return Result{}
}

func dispatch(shape schema.Shape, v session.Value) (mode, string) {
	kind := v.Kind()
	switch shape {
	case schema.ShapeNumber:
		if kind == session.KindNumber {
			return modeScalar, ""
		}
		return 0, "Value must be a number"
	case schema.ShapeString:
		if kind == session.KindString {
			return modeString, ""
		}
		return 0, "Value must be a string"
	case schema.ShapeBoolean:
		if kind == session.KindBool {
			return modeBool, ""
		}
		return 0, "Value must be a boolean (True or False)"
	case schema.ShapeNumberArray:
		if kind == session.KindNumbers {
			return modeArray, ""
		}
		return 0, "Value must be an array of numbers"
	case schema.ShapeNumberOrArray:
		switch kind {
		case session.KindNumber:
			return modeScalar, ""
		case session.KindNumbers:
			return modeArray, ""
		}
		return 0, "Value must be a number or an array of numbers"
	}
	return 0, fmt.Sprintf("Unsupported field type %q", shape)
}

func firstFailure(checks []schema.Check, m mode, v session.Value) string {
	for _, c := range checks {
		if msg := evaluate(c, m, v); msg != "" {
			return msg
		}
	}
	return ""
}

// evaluate returns the failure message of c, or "" when it passes or does
// not apply to the value's mode.
func evaluate(c schema.Check, m mode, v session.Value) string {
	t := session.FormatNumber(c.Threshold)
	switch m {
	case modeScalar:
		x, _ := v.Float()
		switch c.Op {
		case schema.OpInteger:
			if !v.Integral() {
				return "Value must be an integer"
			}
		case schema.OpGT:
			if !(x > c.Threshold) {
				return "Value must be > " + t
			}
		case schema.OpLT:
			if !(x < c.Threshold) {
				return "Value must be < " + t
			}
		case schema.OpGE:
			if !(x >= c.Threshold) {
				return "Value must be >= " + t
			}
		case schema.OpLE:
			if !(x <= c.Threshold) {
				return "Value must be <= " + t
			}
		case schema.OpWarnGT:
			if !(x > c.Threshold) {
				return "Value is unusually low (" + t + ")"
			}
		case schema.OpWarnLT:
			if !(x < c.Threshold) {
				return "Value is unusually high (" + t + ")"
			}
		}
	case modeArray:
		xs, _ := v.Floats()
		switch c.Op {
		case schema.OpSize:
			if len(xs) != c.Size {
				return fmt.Sprintf("Array must consist of exactly %d numbers", c.Size)
			}
		case schema.OpGT:
			if !all(xs, func(x float64) bool { return x > c.Threshold }) {
				return "All numbers must be > " + t
			}
		case schema.OpLT:
			if !all(xs, func(x float64) bool { return x < c.Threshold }) {
				return "All numbers must be < " + t
			}
		case schema.OpGE:
			if !all(xs, func(x float64) bool { return x >= c.Threshold }) {
				return "All numbers must be >= " + t
			}
		case schema.OpLE:
			if !all(xs, func(x float64) bool { return x <= c.Threshold }) {
				return "All numbers must be <= " + t
			}
		case schema.OpWarnGT:
			if !all(xs, func(x float64) bool { return x > c.Threshold }) {
				return "Some numbers may be unusually low (" + t + ")"
			}
		case schema.OpWarnLT:
			if !all(xs, func(x float64) bool { return x < c.Threshold }) {
				return "Some numbers may be unusually high (" + t + ")"
			}
		case schema.OpAscending:
			for i := 1; i < len(xs); i++ {
				if xs[i] < xs[i-1] {
					return "Numbers in the array are not in ascending order"
				}
			}
		}
	case modeString:
		if c.Op != schema.OpOneOf {
			return ""
		}
		s, _ := v.Text()
		fold := cases.Fold()
		want := fold.String(s)
		for _, allowed := range c.Allowed {
			if fold.String(allowed) == want {
				return ""
			}
		}
		return "Value must be one of " + quoteList(c.Allowed) + ", case-insensitive"
	}
	return ""
}

func all(xs []float64, pred func(float64) bool) bool {
	for _, x := range xs {
		if !pred(x) {
			return false
		}
	}
	return true
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
