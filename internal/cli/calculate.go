package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/instance"
	"github.com/rshade/tcocalc/internal/selection"
	"github.com/rshade/tcocalc/internal/tui"
)

// selectionFlags name one path through the catalog.
type selectionFlags struct {
	industry   string
	technology string
	solution   string
	variant    string
}

// NewCalculateCmd creates the calculate command, which configures one
// solution variant and runs the calculation engine on it.
func NewCalculateCmd() *cobra.Command {
	var (
		sel    selectionFlags
		sets   []string
		output string
	)

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate the total cost of ownership of one configuration",
		Long: `Selects an industry, technology, solution and variant, loads the variant's
configuration fields, applies --set values, and runs the calculation.

Derived fields (such as the annualised air pPUE) are filled automatically once
their inputs are set and cannot be overridden.`,
		Example: `  tcocalc calculate --industry data-centres --technology cooling-systems \
    --solution air-cooling --variant crah-units \
    --set project_location="United Kingdom" --set utilisation_percentage=40% \
    --set data_hall_capacity=10 --set planned_years_operation=10 \
    --set first_year_operation=2026 --set data_centre_type=Greenfield`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			if output == "" {
				output = cfg.Output.DefaultFormat
			}
			if err := validateOutput(output); err != nil {
				return err
			}
			assignments, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			return runCalculate(cmd, cfg, sel, assignments, output)
		},
	}

	cmd.Flags().StringVar(&sel.industry, "industry", "", "industry id or name")
	cmd.Flags().StringVar(&sel.technology, "technology", "", "technology id or name")
	cmd.Flags().StringVar(&sel.solution, "solution", "", "solution id or name")
	cmd.Flags().StringVar(&sel.variant, "variant", "", "variant id or name")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value as field=value (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: table or json (default from config)")
	for _, name := range []string{"industry", "technology", "solution", "variant"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runCalculate(
	cmd *cobra.Command,
	cfg *config.Config,
	sel selectionFlags,
	assignments [][2]string,
	output string,
) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestDeadline(cfg))
	defer cancel()

	client, err := newAPIClient(ctx, cfg)
	if err != nil {
		return err
	}
	in := instance.New("A", instanceDeps(client, cfg))

	if err := in.LoadIndustries(ctx); err != nil {
		return err
	}
	if err := runSelectSteps(ctx, instanceSteps(in, sel)); err != nil {
		return err
	}
	if snap := in.Snapshot(); snap.SchemaErr != nil {
		return fmt.Errorf("loading configuration fields: %w", snap.SchemaErr)
	}
	for _, kv := range assignments {
		if err := in.SetField(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("setting %s: %w", kv[0], err)
		}
	}

	result, err := in.Calculate(ctx)
	if err != nil {
		return err
	}

	logger.Info().Ctx(ctx).
		Str("solution", in.SolutionName()).
		Int("result_keys", len(result)).
		Msg("calculation complete")

	if output == OutputJSON {
		req := in.Request()
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"solution_type": req.SolutionType,
			"request":       req.Values,
			"result":        result,
		})
	}
	return renderResult(cmd.OutOrStdout(), result, cfg.Tables.ResultLabels, cfg.Output.Precision)
}

// instanceSteps selects sel on one instance, reading each level's options
// from the instance after the previous level has loaded.
func instanceSteps(in *instance.Instance, sel selectionFlags) []selectStep {
	lists := func(pick func(selection.Snapshot) []selection.Option) func() []selection.Option {
		return func() []selection.Option { return pick(in.Snapshot().Selection) }
	}
	return []selectStep{
		{
			level: "industry", want: sel.industry,
			list:   lists(func(s selection.Snapshot) []selection.Option { return s.Industries }),
			choose: in.SelectIndustry,
		},
		{
			level: "technology", want: sel.technology,
			list:   lists(func(s selection.Snapshot) []selection.Option { return s.Technologies }),
			choose: in.SelectTechnology,
		},
		{
			level: "solution", want: sel.solution,
			list:   lists(func(s selection.Snapshot) []selection.Option { return s.Solutions }),
			choose: in.SelectSolution,
		},
		{
			level: "variant", want: sel.variant,
			list:   lists(func(s selection.Snapshot) []selection.Option { return s.Variants }),
			choose: in.SelectVariant,
		},
	}
}

func renderResult(w io.Writer, result calculation.Result, labels map[string]string, precision int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "METRIC\tVALUE")
	for _, key := range sortedKeys(result, labels) {
		label := labels[key]
		if label == "" {
			label = key
		}
		value := fmt.Sprint(result[key])
		if n, ok := result.Number(key); ok {
			value = "$" + tui.FormatAmount(n, precision)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", label, value)
	}
	return tw.Flush()
}
