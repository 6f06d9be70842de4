package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"aslreport/internal/api"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored validation runs",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(ctx, func(svc *api.ValidationService) error {
				runs, err := svc.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, run := range runs {
					rows = append(rows, []string{
						run.ID,
						run.CreatedAt,
						fmt.Sprintf("%d", len(run.Sources)),
						fmt.Sprintf("%d", run.Major),
						fmt.Sprintf("%d", run.Errors),
						fmt.Sprintf("%d", run.Warnings),
						run.Status,
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{header: "ID"},
					{header: "Created"},
					{header: "Files", align: alignRight},
					{header: "Major", align: alignRight},
					{header: "Errors", align: alignRight},
					{header: "Warnings", align: alignRight},
					{header: "Status"},
				}, rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print runs as JSON")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the report and counts of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(ctx, func(svc *api.ValidationService) error {
				detail, err := svc.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, detail)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Run "+detail.ID, colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Created", statusInfo, detail.CreatedAt, colorize))
				fmt.Fprintln(out, renderStatusLine("Files", statusInfo, strings.Join(detail.Sources, ", "), colorize))
				fmt.Fprintln(out, renderStatusLine("Major errors", countKind(detail.Major, statusError), fmt.Sprintf("%d", detail.Major), colorize))
				fmt.Fprintln(out, renderStatusLine("Errors", countKind(detail.Errors, statusError), fmt.Sprintf("%d", detail.Errors), colorize))
				fmt.Fprintln(out, renderStatusLine("Warnings", countKind(detail.Warnings, statusWarn), fmt.Sprintf("%d", detail.Warnings), colorize))
				fmt.Fprintln(out, renderStatusLine("Suppressed", statusInfo, yesNo(detail.Suppressed), colorize))

				var stored struct {
					Inconsistencies struct {
						Major    []string `json:"major"`
						Errors   []string `json:"errors"`
						Warnings []string `json:"warnings"`
					} `json:"inconsistencies"`
				}
				if len(detail.Result) > 0 && json.Unmarshal(detail.Result, &stored) == nil {
					lines := slices.Concat(stored.Inconsistencies.Major, stored.Inconsistencies.Errors, stored.Inconsistencies.Warnings)
					if len(lines) > 0 {
						writeSection(out, "Inconsistencies", colorize)
						for _, line := range lines {
							fmt.Fprintln(out, statusIndent+line)
						}
					}
				}

				writeSection(out, "Report", colorize)
				fmt.Fprintln(out, detail.Report)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the stored run as JSON")
	return cmd
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs and artifacts older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return fmt.Errorf("--days must be positive")
			}
			return withService(ctx, func(svc *api.ValidationService) error {
				removed, err := svc.Prune(cmd.Context(), days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Age in days beyond which runs are deleted")
	return cmd
}

func withService(ctx *commandContext, fn func(*api.ValidationService) error) error {
	logger, err := ctx.fileLogger()
	if err != nil {
		return err
	}
	svc, closeFn, err := ctx.validationService(logger, true)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(svc)
}
