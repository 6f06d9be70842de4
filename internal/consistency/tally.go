package consistency

import (
	"math"
	"sort"

	"aslreport/internal/session"
)

// Count is one distinct value and how often it occurred.
type Count struct {
	Value session.Value
	Count int
}

// Tally is the frequency picture of one field across a batch.
type Tally struct {
	// Counts lists distinct values in order of first appearance.
	Counts []Count
	Total  int
	// Majority is set only when one value occurs in more than half of the
	// observations.
	Majority    session.Value
	HasMajority bool
	Min, Max    float64
	HasRange    bool
}

// TallyValues counts values. One-element sequences are unwrapped so that
// [1800] and 1800 count as the same value.
func TallyValues(values []session.Value) Tally {
	t := Tally{Total: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	index := make(map[string]int, len(values))
	for _, raw := range values {
		v := raw.Unwrap()
		key := v.Key()
		if i, ok := index[key]; ok {
			t.Counts[i].Count++
		} else {
			index[key] = len(t.Counts)
			t.Counts = append(t.Counts, Count{Value: v, Count: 1})
		}
		switch v.Kind() {
		case session.KindNumber:
			f, _ := v.Float()
			t.widen(f)
		case session.KindNumbers:
			fs, _ := v.Floats()
			for _, f := range fs {
				t.widen(f)
			}
		}
	}
	for _, c := range t.Counts {
		if 2*c.Count > t.Total {
			t.Majority = c.Value
			t.HasMajority = true
			break
		}
	}
	return t
}

// TallyObservations counts the values of a set of observations.
func TallyObservations(obs []session.Observation) Tally {
	values := make([]session.Value, len(obs))
	for i, o := range obs {
		values[i] = o.Value
	}
	return TallyValues(values)
}

func (t *Tally) widen(f float64) {
	t.HasRange = true
	if f < t.Min {
		t.Min = f
	}
	if f > t.Max {
		t.Max = f
	}
}

// RangeText renders the numeric range as "Range: min-max", or "" when no
// numeric value was seen.
func (t Tally) RangeText() string {
	if !t.HasRange {
		return ""
	}
	return "Range: " + num(t.Min) + "-" + num(t.Max)
}

// Ranked returns the distinct values by descending count. Equal counts are
// ordered by canonical value key so the result never depends on input order.
func (t Tally) Ranked() []Count {
	ranked := append([]Count(nil), t.Counts...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Value.Key() < ranked[j].Value.Key()
	})
	return ranked
}
