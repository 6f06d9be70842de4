// Package validation runs the three-pass batch validation.
//
// A Validator walks the major, required and recommended rule tables in
// order. For every field it evaluates applicability per session, reports
// missing fields for the major and required passes, reconciles values
// across sessions, checks each present value on its own, and records every
// present value in the outcome. Findings are data: Validate never fails.
package validation

import (
	"aslreport/internal/consistency"
	"aslreport/internal/fieldcheck"
	"aslreport/internal/schema"
	"aslreport/internal/session"
)

// Validator applies a fixed set of rule tables.
type Validator struct {
	tables *schema.Tables
}

// New returns a validator over tables. Tables are not copied and must not be
// modified afterwards.
func New(tables *schema.Tables) *Validator {
	return &Validator{tables: tables}
}

// Tables exposes the rule tables in use.
func (v *Validator) Tables() *schema.Tables {
	return v.tables
}

// Validate checks a batch. Sessions are read, never modified, and are
// visited in batch order.
func (v *Validator) Validate(batch []*session.Session) *Outcome {
	out := NewOutcome()
	for _, tier := range schema.Tiers {
		for _, rule := range v.tables.Pass(tier) {
			v.validateField(out, tier, rule, batch)
		}
	}
	return out
}

func (v *Validator) validateField(out *Outcome, tier schema.Tier, rule schema.FieldRule, batch []*session.Session) {
	out.Track(rule.Name)

	var missing []string
	var present []session.Observation
	for _, s := range batch {
		if !rule.When.Applies(s) {
			continue
		}
		value, ok := s.Get(rule.Name)
		if !ok {
			missing = append(missing, s.Source)
			continue
		}
		present = append(present, session.Observation{Source: s.Source, Value: value})
	}
	for _, obs := range present {
		out.Observe(rule.Name, obs)
	}

	if sev := tier.MissingSeverity(); len(missing) > 0 && sev != schema.SeverityNone {
		out.Add(rule.Name, sev, MissingMessage, MissingMessage, missing, false)
		return
	}
	if len(present) == 0 {
		return
	}

	if crule, ok := v.tables.ConsistencyFor(rule.Name); ok {
		res := consistency.Reconcile(crule, present)
		if res.Inconsistent() {
			out.Add(rule.Name, res.Severity, res.Message, res.Concise, sources(present), true)
		}
	}

	for _, obs := range present {
		res := fieldcheck.Check(rule, obs.Value)
		if res.OK() {
			continue
		}
		msg := res.Message()
		out.Add(rule.Name, res.Severity(), msg, msg, []string{obs.Source}, false)
	}
}

func sources(obs []session.Observation) []string {
	out := make([]string, len(obs))
	for i, o := range obs {
		out[i] = o.Source
	}
	return out
}
