// Package report renders validated metadata as methods-section prose.
//
// Every parameter in the text is taken from the validation outcome. A field
// flagged inconsistent at error or major tier is rendered with its majority
// value and a note, or with "no common data" when no value holds a majority.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"aslreport/internal/normalize"
	"aslreport/internal/session"
	"aslreport/internal/validation"
)

// SuppressedText replaces the report when major errors block generation.
const SuppressedText = "Major errors found, cannot generate report."

// Input carries everything the report is built from.
type Input struct {
	Outcome *validation.Outcome
	// M0Sentence describes how M0 was obtained. Empty omits it.
	M0Sentence string
	// M0TR is the repetition time of the M0 scans in milliseconds.
	M0TR *float64
	// SliceCount is the third image dimension, 0 when unknown.
	SliceCount int
	// Extended enables the paragraph of recommended parameters.
	Extended bool
}

// Parameter is one named value of the report table.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Report is a generated methods paragraph with its parameter tables.
type Report struct {
	ASL                string      `json:"asl"`
	M0                 string      `json:"m0"`
	Extended           string      `json:"extended,omitempty"`
	Parameters         []Parameter `json:"parameters"`
	ExtendedParameters []Parameter `json:"extended_parameters,omitempty"`
}

// Text joins the paragraphs into the final report text.
func (r Report) Text() string {
	text := r.ASL + r.M0
	if r.Extended != "" {
		text += "\n\n" + strings.TrimSpace(r.Extended)
	}
	return text
}

// Suppressed returns the placeholder report used when major errors exist.
func Suppressed() Report {
	return Report{ASL: SuppressedText}
}

// Generate builds the report. It never fails; absent values read "N/A".
func Generate(in Input) Report {
	outcome := in.Outcome
	if outcome == nil {
		outcome = validation.NewOutcome()
	}
	l := lookup{outcome: outcome}
	var r Report
	r.ASL, r.Parameters = aslParagraph(l, in.SliceCount)
	r.M0 = m0Paragraph(in.M0Sentence, in.M0TR)
	if in.M0TR != nil {
		r.Parameters = append(r.Parameters, Parameter{Name: "M0 TR", Value: session.FormatNumber(*in.M0TR)})
	}
	if in.Extended {
		r.Extended, r.ExtendedParameters = extendedParagraph(l)
	}
	return r
}

func aslParagraph(l lookup, slices int) (string, []Parameter) {
	aslType := l.text("ArterialSpinLabelingType", textOptions{})
	labeling := labelingKind(l)
	pulseSeq := l.text("PulseSequenceType", textOptions{format: pulseSequence})
	pattern := contextPattern(l)
	voxelInPlane, voxelThickness := l.voxel()
	sliceText := notAvailable
	if slices > 0 {
		sliceText = strconv.Itoa(slices)
	}

	params := []Parameter{
		{"Labeling Type", aslType},
		{"Post-Labeling Delay (PLD)", l.delays("PostLabelingDelay", pattern == "deltam")},
		{"Field Strength", l.text("MagneticFieldStrength", textOptions{})},
		{"Manufacturer", l.text("Manufacturer", textOptions{})},
		{"Model", l.joined("ManufacturersModelName")},
		{"PLD Type", l.text(normalize.FieldPLDType, textOptions{})},
		{"MR Acquisition Type", l.text("MRAcquisitionType", textOptions{})},
		{"Pulse Sequence Type", pulseSeq},
		{"Echo Time", l.text("EchoTime", textOptions{withRange: true})},
		{"Repetition Time (TR)", l.delays("RepetitionTimePreparation", pattern == "deltam")},
		{"Flip Angle", l.text("FlipAngle", textOptions{withRange: true})},
		{"In-plane Resolution", voxelInPlane},
		{"Slice Thickness", voxelThickness},
		{"Number of Slices", sliceText},
		{"Total Acquired Pairs", l.text(normalize.FieldTotalAcquiredPairs, textOptions{withRange: true})},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ASL was acquired on a %sT %s %s scanner using %s ",
		l.text("MagneticFieldStrength", textOptions{}),
		l.text("Manufacturer", textOptions{}),
		l.joined("ManufacturersModelName"),
		l.text(normalize.FieldPLDType, textOptions{}))
	if paslType := l.text("PASLType", textOptions{recommended: true}); paslType != "" {
		b.WriteString(paslType + " ")
	}
	fmt.Fprintf(&b, "%s labeling and a %s %s readout with the following parameters: ",
		aslType, l.text("MRAcquisitionType", textOptions{}), pulseSeq)

	clauses := []string{
		"TE = " + l.text("EchoTime", textOptions{withRange: true, format: millis}),
		"TR = " + l.delays("RepetitionTimePreparation", pattern == "deltam"),
		"flip angle " + l.text("FlipAngle", textOptions{withRange: true}) + " degrees",
		"in-plane resolution " + voxelInPlane + "mm^2",
		sliceText + " slices with " + voxelThickness + "mm thickness",
	}

	switch labeling {
	case labelingContinuous:
		ld := l.text("LabelingDuration", textOptions{withRange: true, format: millis})
		pld := l.delays("PostLabelingDelay", pattern == "deltam")
		clauses = append(clauses, "labeling duration "+ld, "PLD "+pld)
		params = append(params, Parameter{"Labeling Duration", ld})
	case labelingPulsed:
		clauses = append(clauses, "inversion time "+l.delays("PostLabelingDelay", pattern == "deltam"))
		if slab := l.text("LabelingSlabThickness", textOptions{recommended: true}); slab != "" {
			clauses = append(clauses, "labeling slab thickness "+slab+"mm")
			params = append(params, Parameter{"Labeling Slab Thickness", slab})
		}
	}

	if flag, ok := l.flag("BolusCutOffFlag"); ok {
		clause := flag + " bolus saturation"
		if flag == "with" {
			technique := l.text("BolusCutOffTechnique", textOptions{})
			delay := l.bolusDelay()
			clause += " using " + technique + " pulse applied " + delay + " after the labeling"
			params = append(params, Parameter{"Bolus Cut-Off Technique", technique}, Parameter{"Bolus Cut-Off Delay Time", delay})
		}
		clauses = append(clauses, clause)
		params = append(params, Parameter{"Bolus Cut-Off Flag", flag})
	}

	if flag, ok := l.flag("BackgroundSuppression"); ok {
		clause := flag + " background suppression"
		params = append(params, Parameter{"Background Suppression", flag})
		if flag == "with" {
			if n := l.text("BackgroundSuppressionNumberPulses", textOptions{recommended: true, withRange: true}); n != "" {
				clause += " with " + n + " pulses"
				params = append(params, Parameter{"Number of Background Suppression Pulses", n})
			}
			if times := l.text("BackgroundSuppressionPulseTime", textOptions{recommended: true, format: pulseTimes}); times != "" {
				clause += " at " + times + " after the start of labeling"
				params = append(params, Parameter{"Background Suppression Pulse Time", times})
			}
		}
		clauses = append(clauses, clause)
	}
	b.WriteString(strings.Join(clauses, ", "))
	b.WriteString(".")

	pairs := l.text(normalize.FieldTotalAcquiredPairs, textOptions{withRange: true})
	noun := "pairs were"
	if r := l.pick(normalize.FieldTotalAcquiredPairs); r.status == statusConsistent && r.value.String() == "1" {
		noun = "pair was"
	}
	fmt.Fprintf(&b, " In total, %s %s %s acquired", pairs, pattern, noun)
	if dur := l.text("AcquisitionDuration", textOptions{recommended: true, format: duration}); dur != "" {
		fmt.Fprintf(&b, " in a %s time.", dur)
		params = append(params, Parameter{"Acquisition Duration", dur})
	} else {
		b.WriteString(".")
	}
	return b.String(), params
}

func m0Paragraph(sentence string, tr *float64) string {
	var b strings.Builder
	if sentence != "" {
		b.WriteString(" " + sentence)
	}
	if tr != nil {
		fmt.Fprintf(&b, " TR for M0 is %sms.", session.FormatNumber(*tr))
	}
	return b.String()
}

type labeling int

const (
	labelingUnknown labeling = iota
	labelingContinuous
	labelingPulsed
)

// labelingKind picks the clause family from the representative labeling
// type. Without a usable value no labeling clause is written.
func labelingKind(l lookup) labeling {
	r := l.pick("ArterialSpinLabelingType")
	if !r.usable() {
		return labelingUnknown
	}
	text, _ := r.value.Text()
	switch strings.ToUpper(text) {
	case "PCASL", "CASL", "(P)CASL":
		return labelingContinuous
	case "PASL":
		return labelingPulsed
	}
	return labelingUnknown
}

func pulseSequence(v session.Value) string {
	text := v.String()
	if strings.EqualFold(text, "3Dgrase") {
		return "GRASE"
	}
	return text
}

// contextPattern is the label order of the pairs. Batches that disagree fall
// back to control-label with a note.
func contextPattern(l lookup) string {
	r := l.pick(normalize.FieldContextPattern)
	switch r.status {
	case statusConsistent:
		return r.value.String()
	case statusMajority, statusNoMajority:
		return "control-label (there's no consistent control-label or label-control order)"
	}
	return "control-label"
}

func extendedParagraph(l lookup) (string, []Parameter) {
	rec := func(field string, format func(session.Value) string) string {
		return l.text(field, textOptions{recommended: true, format: format})
	}
	var params []Parameter
	var b strings.Builder

	if loc := rec("LabelingLocationDescription", nil); loc != "" {
		fmt.Fprintf(&b, " Labeling location: %s.", loc)
		params = append(params, Parameter{"Labeling Location Description", loc})
	}
	if dist := rec("LabelingDistance", nil); dist != "" {
		fmt.Fprintf(&b, " The labeling plane was positioned %smm from the isocenter.", dist)
		params = append(params, Parameter{"Labeling Distance", dist})
	}

	crushing := l.pick("VascularCrushing")
	switch crushing.status {
	case statusConsistent:
		if on, _ := crushing.value.Truth(); on {
			b.WriteString(" Vascular crushing was applied")
			params = append(params, Parameter{"Vascular Crushing", "true"})
			if venc := rec("VascularCrushingVENC", nil); venc != "" {
				fmt.Fprintf(&b, " with a %scm/s threshold.", venc)
				params = append(params, Parameter{"Vascular Crushing VENC", venc})
			} else {
				b.WriteString(".")
			}
		}
	case statusMajority, statusNoMajority:
		note := rec("VascularCrushing", nil)
		fmt.Fprintf(&b, " Vascular crushing was %s.", note)
		params = append(params, Parameter{"Vascular Crushing", note})
	}

	title := cases.Title(language.English)
	kind := ""
	if pcaslType := rec("PCASLType", nil); pcaslType != "" {
		kind = title.String(pcaslType) + " PCASL"
		params = append(params, Parameter{"PCASL Type", pcaslType})
	} else if caslType := rec("CASLType", nil); caslType != "" {
		kind = title.String(caslType) + " CASL"
		params = append(params, Parameter{"CASL Type", caslType})
	}

	pulse, pulseParams := pulseDescription(rec)
	params = append(params, pulseParams...)
	switch {
	case kind != "" && pulse != "":
		fmt.Fprintf(&b, " %s labeling was applied with the following pulse parameters: %s.", kind, pulse)
	case kind != "":
		fmt.Fprintf(&b, " %s labeling was applied.", kind)
	case pulse != "":
		fmt.Fprintf(&b, " Labeling was applied with the following pulse parameters: %s.", pulse)
	}
	return b.String(), params
}

func pulseDescription(rec func(string, func(session.Value) string) string) (string, []Parameter) {
	avg := rec("LabelingPulseAverageGradient", nil)
	peak := rec("LabelingPulseMaximumGradient", nil)
	b1 := rec("LabelingPulseAverageB1", nil)
	flip := rec("LabelingPulseFlipAngle", nil)
	interval := rec("LabelingPulseInterval", nil)
	length := rec("LabelingPulseDuration", nil)

	var params []Parameter
	var groups []string
	switch {
	case avg != "" && peak != "":
		groups = append(groups, fmt.Sprintf("average %smT/m and maximum pulse gradient %smT/m", avg, peak))
	case avg != "":
		groups = append(groups, fmt.Sprintf("average pulse gradient %smT/m", avg))
	case peak != "":
		groups = append(groups, fmt.Sprintf("maximum pulse gradient %smT/m", peak))
	}
	var timing []string
	if length != "" {
		timing = append(timing, "with "+length+"ms pulses")
	}
	if interval != "" {
		timing = append(timing, "applied at "+interval+"ms intervals")
	}
	if len(timing) > 0 {
		groups = append(groups, strings.Join(timing, " "))
	}
	if b1 != "" {
		groups = append(groups, "average B1-field strength "+b1+"uT")
	}
	if flip != "" {
		groups = append(groups, "with "+flip+" degree flip angle")
	}

	for _, p := range []Parameter{
		{"Labeling Pulse Average Gradient", avg},
		{"Labeling Pulse Maximum Gradient", peak},
		{"Labeling Pulse Average B1", b1},
		{"Labeling Pulse Flip Angle", flip},
		{"Labeling Pulse Interval", interval},
		{"Labeling Pulse Duration", length},
	} {
		if p.Value != "" {
			params = append(params, p)
		}
	}
	return strings.Join(groups, ", "), params
}
