package main

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"aslreport/internal/schema"
	"aslreport/internal/session"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	var (
		tierFlag string
		dump     bool
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the validation rule tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dump {
				data := schema.DefaultYAML()
				if path := strings.TrimSpace(cfg.Rules.Path); path != "" {
					data, err = os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read rules file: %w", err)
					}
				}
				_, err := out.Write(data)
				return err
			}

			tables, err := ctx.ensureTables()
			if err != nil {
				return err
			}
			tiers := schema.Tiers
			if value := strings.ToLower(strings.TrimSpace(tierFlag)); value != "" {
				tier := schema.Tier(value)
				if !slices.Contains(schema.Tiers, tier) {
					return fmt.Errorf("unknown tier %q (want major, required or recommended)", tierFlag)
				}
				tiers = []schema.Tier{tier}
			}

			if jsonOut {
				return writeJSON(cmd, rulesJSON(tables, tiers))
			}

			rows := [][]string{}
			for _, tier := range tiers {
				for _, rule := range tables.Pass(tier) {
					rows = append(rows, []string{rule.Name, string(tier), string(rule.Shape), rule.When.String(), rule.Describe()})
				}
			}
			fmt.Fprintln(out, renderTable([]column{
				{header: "Field"},
				{header: "Tier"},
				{header: "Type"},
				{header: "Applies"},
				{header: "Checks", maxWidth: 60},
			}, rows))

			if tierFlag == "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, consistencyTable(tables))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tierFlag, "tier", "", "Only list one tier (major, required, recommended)")
	cmd.Flags().BoolVar(&dump, "dump", false, "Print the active rule document as YAML")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the rules as JSON")
	return cmd
}

func consistencyTable(tables *schema.Tables) string {
	names := make([]string, 0, len(tables.Consistency))
	for name := range tables.Consistency {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rule := tables.Consistency[name]
		rows = append(rows, []string{name, string(rule.Compare), yesNo(rule.Major), tolerance(rule.ErrorTolerance), tolerance(rule.WarningTolerance)})
	}
	return renderTable([]column{
		{header: "Consistency field"},
		{header: "Compare"},
		{header: "Major"},
		{header: "Error tol.", align: alignRight},
		{header: "Warning tol.", align: alignRight},
	}, rows)
}

func tolerance(value *float64) string {
	if value == nil {
		return "-"
	}
	return session.FormatNumber(*value)
}

type ruleView struct {
	Name    string   `json:"name"`
	Tier    string   `json:"tier"`
	Type    string   `json:"type"`
	Aliases []string `json:"aliases,omitempty"`
	Applies string   `json:"applies"`
	Checks  string   `json:"checks"`
}

func rulesJSON(tables *schema.Tables, tiers []schema.Tier) []ruleView {
	views := []ruleView{}
	for _, tier := range tiers {
		for _, rule := range tables.Pass(tier) {
			views = append(views, ruleView{
				Name:    rule.Name,
				Tier:    string(tier),
				Type:    string(rule.Shape),
				Aliases: rule.Aliases,
				Applies: rule.When.String(),
				Checks:  rule.Describe(),
			})
		}
	}
	return views
}
