package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"

	"aslreport/internal/report"
	"aslreport/internal/validation"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
	messageWidth     = 72
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func writeSection(out io.Writer, title string, colorize bool) {
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// countKind grades a finding count for its tier.
func countKind(count int, kind statusKind) statusKind {
	if count == 0 {
		return statusOK
	}
	return kind
}

// findingsTable lists findings sorted by field. Fields listed in order come
// first in that order.
func findingsTable(findings validation.Findings, order []string) string {
	if len(findings) == 0 {
		return ""
	}
	fields := orderedFields(findings, order)
	rows := make([][]string, 0, len(fields))
	for _, field := range fields {
		for _, f := range findings[field] {
			rows = append(rows, []string{field, f.Message, sourcesLabel(f.Sources)})
		}
	}
	return renderTable([]column{
		{header: "Field"},
		{header: "Message", maxWidth: messageWidth},
		{header: "Sources", maxWidth: 40},
	}, rows)
}

func orderedFields(findings validation.Findings, order []string) []string {
	seen := make(map[string]struct{}, len(findings))
	fields := make([]string, 0, len(findings))
	for _, field := range order {
		if _, ok := findings[field]; ok {
			fields = append(fields, field)
			seen[field] = struct{}{}
		}
	}
	var rest []string
	for field := range findings {
		if _, ok := seen[field]; !ok {
			rest = append(rest, field)
		}
	}
	sort.Strings(rest)
	return append(fields, rest...)
}

func sourcesLabel(sources []string) string {
	switch len(sources) {
	case 0:
		return "-"
	case 1, 2:
		return strings.Join(sources, ", ")
	default:
		return fmt.Sprintf("%s (+%d more)", sources[0], len(sources)-1)
	}
}

func parametersTable(params []report.Parameter) string {
	if len(params) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(params))
	for _, p := range params {
		rows = append(rows, []string{p.Name, p.Value})
	}
	return renderTable([]column{{header: "Parameter"}, {header: "Value", maxWidth: messageWidth}}, rows)
}
