package validation

import (
	"strings"

	"aslreport/internal/consistency"
	"aslreport/internal/schema"
	"aslreport/internal/session"
)

// MissingMessage is the finding recorded for absent required fields.
const MissingMessage = "Missing in files"

// Finding is one message and the sources that produced it.
type Finding struct {
	Message       string   `json:"message"`
	Sources       []string `json:"sources"`
	Inconsistency bool     `json:"inconsistency,omitempty"`
}

// Findings maps a field to its findings in the order they were recorded.
type Findings map[string][]Finding

// Has reports whether field has any finding.
func (f Findings) Has(field string) bool {
	return len(f[field]) > 0
}

// HasInconsistency reports whether field carries a cross-session finding.
func (f Findings) HasInconsistency(field string) bool {
	for _, finding := range f[field] {
		if finding.Inconsistency {
			return true
		}
	}
	return false
}

// Count returns the number of findings across all fields.
func (f Findings) Count() int {
	n := 0
	for _, list := range f {
		n += len(list)
	}
	return n
}

// Outcome is the complete result of validating one batch.
//
// Every field named in a severity map also has an entry in Values, possibly
// empty. The mutators below are the only writers and keep that invariant.
type Outcome struct {
	MajorErrors        Findings                         `json:"major_errors"`
	MajorErrorsConcise Findings                         `json:"major_errors_concise"`
	Errors             Findings                         `json:"errors"`
	ErrorsConcise      Findings                         `json:"errors_concise"`
	Warnings           Findings                         `json:"warnings"`
	WarningsConcise    Findings                         `json:"warnings_concise"`
	Values             map[string][]session.Observation `json:"values"`
	// Fields lists every field in evaluation order.
	Fields []string `json:"fields"`
}

// NewOutcome returns an empty outcome.
func NewOutcome() *Outcome {
	return &Outcome{
		MajorErrors:        Findings{},
		MajorErrorsConcise: Findings{},
		Errors:             Findings{},
		ErrorsConcise:      Findings{},
		Warnings:           Findings{},
		WarningsConcise:    Findings{},
		Values:             map[string][]session.Observation{},
	}
}

// HasMajor reports whether any major error was recorded.
func (o *Outcome) HasMajor() bool {
	return len(o.MajorErrors) > 0
}

// Observed returns the reconciled values of field.
func (o *Outcome) Observed(field string) []session.Observation {
	return o.Values[field]
}

// Maps returns the verbose and concise maps of a severity.
func (o *Outcome) Maps(sev schema.Severity) (Findings, Findings) {
	switch sev {
	case schema.SeverityMajor:
		return o.MajorErrors, o.MajorErrorsConcise
	case schema.SeverityError:
		return o.Errors, o.ErrorsConcise
	case schema.SeverityWarning:
		return o.Warnings, o.WarningsConcise
	}
	return nil, nil
}

// Track registers field in the value map without observations.
func (o *Outcome) Track(field string) {
	if _, ok := o.Values[field]; ok {
		return
	}
	o.Values[field] = []session.Observation{}
	o.Fields = append(o.Fields, field)
}

// Observe appends a present value of field.
func (o *Outcome) Observe(field string, obs session.Observation) {
	o.Track(field)
	o.Values[field] = append(o.Values[field], obs)
}

// Add records a finding under sev. A finding whose message already exists
// for the field gains the new sources instead of a duplicate entry.
func (o *Outcome) Add(field string, sev schema.Severity, verbose, concise string, sources []string, inconsistency bool) {
	verboseMap, conciseMap := o.Maps(sev)
	if verboseMap == nil {
		return
	}
	o.Track(field)
	merge(verboseMap, field, verbose, sources, inconsistency)
	merge(conciseMap, field, concise, sources, inconsistency)
}

func merge(m Findings, field, message string, sources []string, inconsistency bool) {
	list := m[field]
	for i := range list {
		if list[i].Message == message {
			list[i].Sources = append(list[i].Sources, sources...)
			return
		}
	}
	m[field] = append(list, Finding{
		Message:       message,
		Sources:       append([]string{}, sources...),
		Inconsistency: inconsistency,
	})
}

// Inconsistencies lists the cross-session findings of one severity as
// "field: message" lines, in field order, using the concise messages.
func (o *Outcome) Inconsistencies(sev schema.Severity) []string {
	_, concise := o.Maps(sev)
	var lines []string
	for _, field := range o.Fields {
		for _, f := range concise[field] {
			if f.Inconsistency {
				lines = append(lines, field+": "+strings.TrimPrefix(f.Message, consistency.Prefix))
			}
		}
	}
	return lines
}

// Counts returns the number of major, error and warning findings.
func (o *Outcome) Counts() (int, int, int) {
	return o.MajorErrors.Count(), o.Errors.Count(), o.Warnings.Count()
}
