package schema

import (
	"fmt"
	"strings"

	"aslreport/internal/session"
)

// Shape is the declared value shape of a field.
type Shape string

const (
	ShapeNumber        Shape = "number"
	ShapeString        Shape = "string"
	ShapeBoolean       Shape = "boolean"
	ShapeNumberArray   Shape = "number_array"
	ShapeNumberOrArray Shape = "number_or_array"
)

func (s Shape) valid() bool {
	switch s {
	case ShapeNumber, ShapeString, ShapeBoolean, ShapeNumberArray, ShapeNumberOrArray:
		return true
	}
	return false
}

// Severity ranks findings. The zero value means no finding.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityError
	SeverityMajor
)

func (s Severity) String() string {
	switch s {
	case SeverityMajor:
		return "major"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "none"
	}
}

// Tier names one of the three validation passes.
type Tier string

const (
	TierMajor       Tier = "major"
	TierRequired    Tier = "required"
	TierRecommended Tier = "recommended"
)

// Tiers lists the passes in evaluation order.
var Tiers = []Tier{TierMajor, TierRequired, TierRecommended}

// MissingSeverity is the severity of an absent field whose obligation applies.
// Recommended fields are never reported as missing.
func (t Tier) MissingSeverity() Severity {
	switch t {
	case TierMajor:
		return SeverityMajor
	case TierRequired:
		return SeverityError
	default:
		return SeverityNone
	}
}

// Op is a check kind understood by the field check interpreter.
type Op string

const (
	OpInteger   Op = "integer"
	OpGT        Op = "gt"
	OpLT        Op = "lt"
	OpGE        Op = "ge"
	OpLE        Op = "le"
	OpWarnGT    Op = "warn_gt"
	OpWarnLT    Op = "warn_lt"
	OpSize      Op = "size"
	OpAscending Op = "ascending"
	OpOneOf     Op = "one_of"
)

// Check is a single predicate. Threshold is used by the bound ops, Size by
// OpSize and Allowed by OpOneOf.
type Check struct {
	Op        Op
	Threshold float64
	Size      int
	Allowed   []string
}

func (c Check) String() string {
	switch c.Op {
	case OpGT:
		return "> " + session.FormatNumber(c.Threshold)
	case OpLT:
		return "< " + session.FormatNumber(c.Threshold)
	case OpGE:
		return ">= " + session.FormatNumber(c.Threshold)
	case OpLE:
		return "<= " + session.FormatNumber(c.Threshold)
	case OpWarnGT:
		return "warn <= " + session.FormatNumber(c.Threshold)
	case OpWarnLT:
		return "warn >= " + session.FormatNumber(c.Threshold)
	case OpSize:
		return fmt.Sprintf("size %d", c.Size)
	case OpOneOf:
		return "one of " + strings.Join(c.Allowed, "|")
	default:
		return string(c.Op)
	}
}

// FieldRule is the immutable rule set for one field.
type FieldRule struct {
	Name    string
	Shape   Shape
	Aliases []string
	When    Condition
	// Major marks rules from the major pass: shape failures and error-tier
	// checks are reported as major errors.
	Major    bool
	Majors   []Check
	Errors   []Check
	Warnings []Check
}

// Describe renders the checks of every tier for listings.
func (r FieldRule) Describe() string {
	var parts []string
	for _, c := range r.Majors {
		parts = append(parts, c.String())
	}
	for _, c := range r.Errors {
		parts = append(parts, c.String())
	}
	for _, c := range r.Warnings {
		parts = append(parts, c.String())
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

// Compare is the comparison kind of a consistency rule.
type Compare string

const (
	CompareString  Compare = "string"
	CompareBoolean Compare = "boolean"
	CompareNumeric Compare = "numeric"
)

// ConsistencyRule describes how one field must agree across a batch.
// A nil tolerance is unset.
type ConsistencyRule struct {
	Compare          Compare
	Major            bool
	ErrorTolerance   *float64
	WarningTolerance *float64
}

// Tables holds every rule used by one validator. Tables are read-only after
// Load and may be shared between concurrent validations.
type Tables struct {
	Major       []FieldRule
	Required    []FieldRule
	Recommended []FieldRule
	Consistency map[string]ConsistencyRule
}

// Pass returns the rules evaluated in the given tier.
func (t *Tables) Pass(tier Tier) []FieldRule {
	switch tier {
	case TierMajor:
		return t.Major
	case TierRequired:
		return t.Required
	case TierRecommended:
		return t.Recommended
	}
	return nil
}

// Lookup finds a field rule by canonical name.
func (t *Tables) Lookup(name string) (FieldRule, Tier, bool) {
	for _, tier := range Tiers {
		for _, rule := range t.Pass(tier) {
			if rule.Name == name {
				return rule, tier, true
			}
		}
	}
	return FieldRule{}, "", false
}

// ConsistencyFor returns the consistency rule for a field, if any.
func (t *Tables) ConsistencyFor(name string) (ConsistencyRule, bool) {
	rule, ok := t.Consistency[name]
	return rule, ok
}

// Aliases maps every declared alias to its canonical field name.
func (t *Tables) Aliases() map[string]string {
	out := make(map[string]string)
	for _, tier := range Tiers {
		for _, rule := range t.Pass(tier) {
			for _, alias := range rule.Aliases {
				out[alias] = rule.Name
			}
		}
	}
	return out
}
