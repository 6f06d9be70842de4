package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"aslreport/internal/api"
	"aslreport/internal/ingest"
	"aslreport/internal/validation"
)

// errFindings is returned by --strict runs that produced errors.
var errFindings = errors.New("validation reported errors")

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var (
		niftiPath string
		jsonOut   bool
		noSave    bool
		verbose   bool
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "validate <dir|files...>",
		Short: "Validate ASL sidecars and print the methods report",
		Long: "Validate ASL metadata. A single directory argument is searched for *asl.json files and\n" +
			"their m0scan.json and aslcontext.tsv companions; otherwise the files are grouped in the\n" +
			"order given, each *asl.json starting a new session.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.fileLogger()
			if err != nil {
				return err
			}
			svc, closeFn, err := ctx.validationService(logger, !noSave)
			if err != nil {
				return err
			}
			defer closeFn()

			files, err := ingest.FromPaths(args)
			if err != nil {
				return api.Wrap(api.ErrValidation, "ingest", "read inputs", "", err)
			}
			sub := api.Submission{Files: files, Save: !noSave}
			if path := strings.TrimSpace(niftiPath); path != "" {
				count, err := niftiSliceCount(path)
				if err != nil {
					return err
				}
				sub.SliceCount = count
			}

			out, err := svc.Submit(cmd.Context(), sub)
			if err != nil {
				return err
			}

			resp := out.Response()
			if jsonOut {
				if err := writeJSON(cmd, resp); err != nil {
					return err
				}
			} else {
				renderValidation(cmd.OutOrStdout(), out, verbose, shouldColorize(cmd.OutOrStdout()))
			}

			if strict && (len(resp.MajorErrors) > 0 || len(resp.Errors) > 0) {
				return errFindings
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&niftiPath, "nifti", "", "NIfTI image (.nii or .nii.gz) supplying the slice count")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full result as JSON")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not record the run or write artifacts")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose finding messages")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when major errors or errors are found")
	return cmd
}

func niftiSliceCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, api.Wrap(api.ErrValidation, "ingest", "open nifti", path, err)
	}
	defer f.Close()
	return api.SliceCount(filepath.Base(path), f)
}

func renderValidation(out io.Writer, run *api.RunResult, verbose, colorize bool) {
	res := run.Result
	outcome := res.Outcome
	majors, errs, warns := outcome.Counts()

	for _, line := range renderSectionHeader("Validation", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Files", statusInfo, fmt.Sprintf("%d", len(res.Sources)), colorize))
	fmt.Fprintln(out, renderStatusLine("Major errors", countKind(majors, statusError), fmt.Sprintf("%d", majors), colorize))
	fmt.Fprintln(out, renderStatusLine("Errors", countKind(errs, statusError), fmt.Sprintf("%d", errs), colorize))
	fmt.Fprintln(out, renderStatusLine("Warnings", countKind(warns, statusWarn), fmt.Sprintf("%d", warns), colorize))
	if res.SliceCount > 0 {
		fmt.Fprintln(out, renderStatusLine("Slices", statusInfo, fmt.Sprintf("%d", res.SliceCount), colorize))
	}

	sections := []struct {
		title   string
		verbose validation.Findings
		concise validation.Findings
	}{
		{"Major Errors", outcome.MajorErrors, outcome.MajorErrorsConcise},
		{"Errors", outcome.Errors, outcome.ErrorsConcise},
		{"Warnings", outcome.Warnings, outcome.WarningsConcise},
	}
	for _, section := range sections {
		findings := section.concise
		if verbose {
			findings = section.verbose
		}
		if len(findings) == 0 {
			continue
		}
		writeSection(out, section.title, colorize)
		fmt.Fprintln(out, findingsTable(findings, outcome.Fields))
	}

	digest := res.Inconsistencies
	if len(digest.Major)+len(digest.Errors)+len(digest.Warnings) > 0 {
		writeSection(out, "Inconsistencies", colorize)
		for _, line := range digest.Major {
			fmt.Fprintln(out, renderStatusLine("Major", statusError, line, colorize))
		}
		for _, line := range digest.Errors {
			fmt.Fprintln(out, renderStatusLine("Error", statusError, line, colorize))
		}
		for _, line := range digest.Warnings {
			fmt.Fprintln(out, renderStatusLine("Warning", statusWarn, line, colorize))
		}
	}

	writeSection(out, "Report", colorize)
	fmt.Fprintln(out, res.ReportText)
	if table := parametersTable(slices.Concat(res.Report.Parameters, res.Report.ExtendedParameters)); table != "" {
		writeSection(out, "Parameters", colorize)
		fmt.Fprintln(out, table)
	}

	if run.Saved {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Run %s saved", run.RunID)
		if run.ArtifactsDir != "" {
			fmt.Fprintf(out, " (artifacts in %s)", run.ArtifactsDir)
		}
		fmt.Fprintln(out)
	}
}
