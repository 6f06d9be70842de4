package normalize

import (
	"strings"

	"aslreport/internal/session"
)

// Volume types recognized in an aslcontext sequence.
const (
	VolumeControl = "control"
	VolumeLabel   = "label"
	VolumeDeltaM  = "deltam"
	VolumeM0Scan  = "m0scan"
)

// Context patterns.
const (
	PatternControlLabel = "control-label"
	PatternLabelControl = "label-control"
	PatternDeltaM       = "deltam"
)

// AnalyzeVolumeTypes derives the acquisition pattern and pair count from a
// per-volume type sequence. The pattern follows the first control, label or
// deltam volume. For deltam series the count is the number of deltam
// volumes. Otherwise a two-pointer scan counts adjacent control/label pairs
// in the pattern's order, skipping by two on a pair and by one on anything
// else. A sequence with no recognized volume yields an empty pattern.
func AnalyzeVolumeTypes(types []string) (string, int) {
	pattern := ""
	for _, t := range types {
		switch strings.TrimSpace(t) {
		case VolumeControl:
			pattern = PatternControlLabel
		case VolumeLabel:
			pattern = PatternLabelControl
		case VolumeDeltaM:
			pattern = PatternDeltaM
		default:
			continue
		}
		break
	}

	switch pattern {
	case "":
		return "", 0
	case PatternDeltaM:
		count := 0
		for _, t := range types {
			if strings.TrimSpace(t) == VolumeDeltaM {
				count++
			}
		}
		return pattern, count
	}

	controlLabel, labelControl := 0, 0
	for i := 0; i < len(types); {
		cur := strings.TrimSpace(types[i])
		next := ""
		if i+1 < len(types) {
			next = strings.TrimSpace(types[i+1])
		}
		switch {
		case cur == VolumeControl && next == VolumeLabel:
			controlLabel++
			i += 2
		case cur == VolumeLabel && next == VolumeControl:
			labelControl++
			i += 2
		default:
			i++
		}
	}
	if pattern == PatternControlLabel {
		return pattern, controlLabel
	}
	return pattern, labelControl
}

// CountVolumes returns how many entries equal kind.
func CountVolumes(types []string, kind string) int {
	n := 0
	for _, t := range types {
		if strings.TrimSpace(t) == kind {
			n++
		}
	}
	return n
}

// ApplyContext injects ASLContextPattern and TotalAcquiredPairs derived from
// the session's aslcontext volume types. Values derived from the volume
// sequence replace any declared in the document.
func ApplyContext(s *session.Session, types []string) {
	pattern, pairs := AnalyzeVolumeTypes(types)
	if pattern == "" {
		return
	}
	s.Set(FieldContextPattern, session.String(pattern))
	s.Set(FieldTotalAcquiredPairs, session.Int(int64(pairs)))
}
