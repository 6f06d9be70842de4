package report

import (
	"fmt"
	"sort"
	"strings"

	"aslreport/internal/consistency"
	"aslreport/internal/session"
	"aslreport/internal/validation"
)

type status int

const (
	statusMissing status = iota
	statusConsistent
	statusMajority
	statusNoMajority
)

// representative is the value chosen to stand for a field in the report.
type representative struct {
	status    status
	value     session.Value
	rangeText string
}

// consistent values and majority values both have a usable value.
func (r representative) usable() bool {
	return r.status == statusConsistent || r.status == statusMajority
}

type lookup struct {
	outcome *validation.Outcome
}

// pick selects the representative of field. A field is inconsistent when the
// outcome holds a cross-session finding for it at major or error tier;
// warning-tier drift still reports the first value.
func (l lookup) pick(field string) representative {
	obs := l.outcome.Observed(field)
	if len(obs) == 0 {
		return representative{status: statusMissing}
	}
	if !l.outcome.MajorErrors.HasInconsistency(field) && !l.outcome.Errors.HasInconsistency(field) {
		return representative{status: statusConsistent, value: obs[0].Value.Unwrap()}
	}
	tally := consistency.TallyObservations(obs)
	if tally.HasMajority {
		return representative{status: statusMajority, value: tally.Majority, rangeText: tally.RangeText()}
	}
	return representative{status: statusNoMajority, rangeText: tally.RangeText()}
}

type textOptions struct {
	withRange   bool
	recommended bool
	format      func(session.Value) string
}

// text renders a representative. Consistent values are formatted as is;
// inconsistent ones are wrapped in an explanatory note.
func (l lookup) text(field string, opts textOptions) string {
	format := opts.format
	if format == nil {
		format = plain
	}
	r := l.pick(field)
	switch r.status {
	case statusConsistent:
		return format(r.value)
	case statusMajority:
		return inconsistentText(format(r.value), r.rangeText, opts.withRange)
	case statusNoMajority:
		return inconsistentText("", r.rangeText, opts.withRange)
	}
	if opts.recommended {
		return ""
	}
	return notAvailable
}

const notAvailable = "N/A"

func inconsistentText(common, rangeText string, withRange bool) string {
	var b strings.Builder
	b.WriteString("(inconsistent, ")
	if common != "" {
		b.WriteString(common + " is the most common data")
	} else {
		b.WriteString("no common data")
	}
	if withRange && rangeText != "" {
		b.WriteString(", " + rangeText)
	}
	b.WriteString(")")
	return b.String()
}

func plain(v session.Value) string { return v.String() }

func millis(v session.Value) string {
	if v.Kind() == session.KindNumbers {
		return v.String()
	}
	return v.String() + "ms"
}

// flag renders a boolean as "with" or "without". ok is false when the field
// was never observed.
func (l lookup) flag(field string) (string, bool) {
	r := l.pick(field)
	word := func(v session.Value) string {
		if b, _ := v.Truth(); b {
			return "with"
		}
		return "without"
	}
	switch r.status {
	case statusConsistent:
		return word(r.value), true
	case statusMajority:
		return inconsistentText(word(r.value), "", false), true
	case statusNoMajority:
		return inconsistentText("", "", false), true
	}
	return "", false
}

// delays renders a delay list such as PostLabelingDelay. Repeated values are
// summarized with their volume count (pairs) or repeat count (deltam).
func (l lookup) delays(field string, deltam bool) string {
	r := l.pick(field)
	render := func(v session.Value) string {
		if v.Kind() != session.KindNumbers {
			return v.String() + "ms"
		}
		fs, _ := v.Floats()
		if len(fs) == 0 {
			return notAvailable
		}
		return countedDelays(fs, deltam)
	}
	switch r.status {
	case statusConsistent:
		return render(r.value)
	case statusMajority:
		return inconsistentText(render(r.value), "", false)
	case statusNoMajority:
		return inconsistentText("", "", false)
	}
	return notAvailable
}

func countedDelays(fs []float64, deltam bool) string {
	counts := make(map[float64]int)
	for _, f := range fs {
		counts[f]++
	}
	if len(counts) == 1 {
		return session.FormatNumber(fs[0]) + "ms"
	}
	keys := make([]float64, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		n := counts[k]
		if deltam {
			parts[i] = fmt.Sprintf("%sms (%d %s)", session.FormatNumber(k), n, plural(n, "repeat", "repeats"))
			continue
		}
		pairs := n / 2
		parts[i] = fmt.Sprintf("%sms (%d %s)", session.FormatNumber(k), pairs, plural(pairs, "volume", "volumes"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// voxel splits AcquisitionVoxelSize into in-plane and thickness texts.
func (l lookup) voxel() (string, string) {
	r := l.pick("AcquisitionVoxelSize")
	fs, _ := r.value.Floats()
	switch r.status {
	case statusConsistent, statusMajority:
		if len(fs) < 3 {
			return notAvailable, notAvailable
		}
		inPlane := session.FormatNumber(fs[0]) + "x" + session.FormatNumber(fs[1])
		thickness := session.FormatNumber(fs[2])
		if r.status == statusMajority {
			return inconsistentText(inPlane, "", false), inconsistentText(thickness, "", false)
		}
		return inPlane, thickness
	case statusNoMajority:
		text := inconsistentText("", "", false)
		return text, text
	}
	return notAvailable, notAvailable
}

// bolusDelay renders BolusCutOffDelayTime as "at Xms" or "from Xms to Yms".
func (l lookup) bolusDelay() string {
	r := l.pick("BolusCutOffDelayTime")
	switch r.status {
	case statusConsistent:
		if fs, ok := r.value.Floats(); ok {
			switch {
			case len(fs) >= 2:
				return "from " + session.FormatNumber(fs[0]) + "ms to " + session.FormatNumber(fs[len(fs)-1]) + "ms"
			case len(fs) == 1:
				return "at " + session.FormatNumber(fs[0]) + "ms"
			}
			return notAvailable
		}
		return "at " + r.value.String() + "ms"
	case statusMajority:
		return inconsistentText(millis(r.value), "", false)
	case statusNoMajority:
		return inconsistentText("", "", false)
	}
	return notAvailable
}

// pulseTimes renders background suppression timings as "Ams, Bms, and Cms".
func pulseTimes(v session.Value) string {
	fs, ok := v.Floats()
	if !ok {
		return millis(v)
	}
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = session.FormatNumber(f) + "ms"
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}

// duration renders seconds as m:ss followed by "min".
func duration(v session.Value) string {
	f, ok := v.Float()
	if !ok {
		return v.String()
	}
	total := int(f)
	return fmt.Sprintf("%d:%02dmin", total/60, total%60)
}

// joined renders every observed value of field, most frequent first, joined
// by "/". Equal counts are ordered by value.
func (l lookup) joined(field string) string {
	tally := consistency.TallyObservations(l.outcome.Observed(field))
	ranked := tally.Ranked()
	if len(ranked) == 0 {
		return notAvailable
	}
	parts := make([]string, len(ranked))
	for i, c := range ranked {
		parts[i] = c.Value.String()
	}
	return strings.Join(parts, "/")
}
