package consistency

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"aslreport/internal/session"
)

// Summary describes the spread of a numeric sample.
type Summary struct {
	Mode       float64
	UniqueMode bool
	Median     float64
	Min        float64
	Max        float64
	P25        float64
	P75        float64
	Outliers   []Outlier
}

// Outlier is a value beyond 1.5 interquartile ranges from the quartiles.
type Outlier struct {
	Source string
	Value  float64
}

// Summarize computes the statistical summary of values. sources is parallel
// to values and attributes outliers.
func Summarize(values []float64, sources []string) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	s := Summary{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: percentile(sorted, 50),
		P25:    percentile(sorted, 25),
		P75:    percentile(sorted, 75),
	}
	s.Mode, s.UniqueMode = mode(values)

	iqr := s.P75 - s.P25
	low, high := s.P25-1.5*iqr, s.P75+1.5*iqr
	for i, v := range values {
		if v < low || v > high {
			source := ""
			if i < len(sources) {
				source = sources[i]
			}
			s.Outliers = append(s.Outliers, Outlier{Source: source, Value: v})
		}
	}
	return s
}

func (s Summary) String() string {
	modeText := "No unique mode"
	if s.UniqueMode {
		modeText = num(s.Mode)
	}
	outliers := make([]string, len(s.Outliers))
	for i, o := range s.Outliers {
		outliers[i] = fmt.Sprintf("(%s, %s)", o.Source, num(o.Value))
	}
	return fmt.Sprintf("Mode: %s, Median: %s, Range: (%s, %s), 25-75 Percentile: (%s, %s), Outliers: [%s]",
		modeText, num(s.Median), num(s.Min), num(s.Max), num(s.P25), num(s.P75), strings.Join(outliers, ", "))
}

// percentile interpolates linearly between closest ranks of an ascending
// sample.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// mode returns the most frequent value. A tie for the highest count has no
// unique mode.
func mode(values []float64) (float64, bool) {
	counts := make(map[float64]int, len(values))
	best, bestCount, tied := 0.0, 0, false
	for _, v := range values {
		counts[v]++
	}
	for _, v := range values {
		c := counts[v]
		switch {
		case c > bestCount:
			best, bestCount, tied = v, c, false
		case c == bestCount && v != best:
			tied = true
		}
	}
	return best, !tied
}

func num(f float64) string {
	return session.FormatNumber(roundNoise(f))
}

// roundNoise trims binary floating point residue such as 0.30000000000000004.
func roundNoise(f float64) float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return f
	}
	r := math.Round(f*1e9) / 1e9
	if math.Abs(r-f) < 1e-12*math.Max(1, math.Abs(f)) {
		return r
	}
	return f
}
