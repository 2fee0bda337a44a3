package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/tcocalc/internal/compare"
	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/instance"
	"github.com/rshade/tcocalc/internal/selection"
	"github.com/rshade/tcocalc/internal/tui"
)

// compareFlags are the flags of the compare command.
type compareFlags struct {
	industry      string
	technology    string
	solutionA     string
	variantA      string
	solutionB     string
	variantB      string
	setA          []string
	setB          []string
	setBoth       []string
	includeITCost bool
	interactive   bool
	output        string
}

// NewCompareCmd creates the compare command, which configures two solutions
// under a shared industry and technology and diffs their results.
func NewCompareCmd() *cobra.Command {
	var f compareFlags

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare the total cost of ownership of two solutions",
		Long: `Configures two solutions side by side. Both share the industry and technology;
each has its own solution, variant and field values. Once both configurations
are complete they are calculated concurrently and the results are diffed.

Values given with --set apply to both sides; --set-a and --set-b apply to one.
IT-cost metrics are hidden unless --include-it-cost is set.`,
		Example: `  tcocalc compare --industry data-centres --technology cooling-systems \
    --solution-a air-cooling --variant-a crah-units \
    --solution-b liquid-cooling --variant-b chassis-immersion \
    --set project_location="United Kingdom" --set utilisation_percentage=40% \
    --set data_hall_capacity=10 --set planned_years_operation=10 \
    --set first_year_operation=2026 --set data_centre_type=Greenfield

  # Edit fields and watch the diff update
  tcocalc compare ... --interactive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			if f.output == "" {
				f.output = cfg.Output.DefaultFormat
			}
			if err := validateOutput(f.output); err != nil {
				return err
			}
			if !cmd.Flags().Changed("include-it-cost") {
				f.includeITCost = cfg.Calculation.IncludeITCost
			}
			if f.interactive && !isTerminal(os.Stdout) {
				return errors.New("--interactive requires a terminal")
			}
			return runCompare(cmd, cfg, f)
		},
	}

	cmd.Flags().StringVar(&f.industry, "industry", "", "shared industry id or name")
	cmd.Flags().StringVar(&f.technology, "technology", "", "shared technology id or name")
	cmd.Flags().StringVar(&f.solutionA, "solution-a", "", "solution of configuration A")
	cmd.Flags().StringVar(&f.variantA, "variant-a", "", "variant of configuration A")
	cmd.Flags().StringVar(&f.solutionB, "solution-b", "", "solution of configuration B")
	cmd.Flags().StringVar(&f.variantB, "variant-b", "", "variant of configuration B")
	cmd.Flags().StringArrayVar(&f.setBoth, "set", nil, "field value for both sides as field=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.setA, "set-a", nil, "field value for A as field=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.setB, "set-b", nil, "field value for B as field=value (repeatable)")
	cmd.Flags().BoolVar(&f.includeITCost, "include-it-cost", false, "include IT-cost metrics in the diff")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "open the interactive comparison view")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output format: table or json (default from config)")
	for _, name := range []string{"industry", "technology", "solution-a", "variant-a", "solution-b", "variant-b"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runCompare(cmd *cobra.Command, cfg *config.Config, f compareFlags) error {
	setsA, err := parseAssignments(append(append([]string(nil), f.setBoth...), f.setA...))
	if err != nil {
		return err
	}
	setsB, err := parseAssignments(append(append([]string(nil), f.setBoth...), f.setB...))
	if err != nil {
		return err
	}

	// The interactive view runs until the user quits; batch runs are bounded.
	ctx := cmd.Context()
	if !f.interactive {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestDeadline(cfg))
		defer cancel()
	}

	client, err := newAPIClient(ctx, cfg)
	if err != nil {
		return err
	}
	deps := instanceDeps(client, cfg)
	orch := compare.New(
		instance.New("A", deps),
		instance.New("B", deps),
		compare.WithIncludeITCost(f.includeITCost),
		compare.WithITCostKeys(cfg.Tables.ITCostKeys),
		compare.WithLabels(cfg.Tables.ResultLabels),
	)

	if err := orch.Activate(ctx); err != nil {
		return err
	}
	if err := orch.LoadIndustries(ctx); err != nil {
		return err
	}
	if err := runSelectSteps(ctx, compareSteps(orch, f)); err != nil {
		return err
	}
	for _, side := range []struct {
		side compare.Side
		sets [][2]string
	}{{compare.SideA, setsA}, {compare.SideB, setsB}} {
		for _, kv := range side.sets {
			if err := orch.SetField(ctx, side.side, kv[0], kv[1]); err != nil {
				return fmt.Errorf("setting %s on %s: %w", kv[0], side.side, err)
			}
		}
	}

	if f.interactive {
		return tui.Run(ctx, orch)
	}

	snap, err := orch.Wait(ctx)
	if err != nil {
		if errors.Is(err, instance.ErrIncomplete) {
			return fmt.Errorf("%w\n%s", err, describeProblems(snap))
		}
		return err
	}
	calcErr := errors.Join(snap.A.ResultErr, snap.B.ResultErr)
	if calcErr != nil && snap.A.Result == nil && snap.B.Result == nil {
		return calcErr
	}

	logger.Info().Ctx(ctx).
		Uint64("round", snap.Round).
		Int("rows", len(snap.Diff)).
		Bool("partial", calcErr != nil).
		Msg("comparison complete")

	var renderErr error
	if f.output == OutputJSON {
		renderErr = writeJSON(cmd.OutOrStdout(), comparisonJSON(snap))
	} else {
		renderErr = renderComparison(cmd.OutOrStdout(), snap)
	}
	return errors.Join(renderErr, calcErr)
}

// compareSteps selects the shared levels through the orchestrator, then
// each side's solution and variant.
func compareSteps(orch *compare.Orchestrator, f compareFlags) []selectStep {
	list := func(side compare.Side, pick func(selection.Snapshot) []selection.Option) func() []selection.Option {
		return func() []selection.Option {
			snap := orch.Snapshot()
			if side == compare.SideB {
				return pick(snap.B.Selection)
			}
			return pick(snap.A.Selection)
		}
	}
	onSide := func(side compare.Side, fn func(context.Context, compare.Side, string) error) func(context.Context, string) error {
		return func(ctx context.Context, id string) error { return fn(ctx, side, id) }
	}
	industries := func(s selection.Snapshot) []selection.Option { return s.Industries }
	technologies := func(s selection.Snapshot) []selection.Option { return s.Technologies }
	solutions := func(s selection.Snapshot) []selection.Option { return s.Solutions }
	variants := func(s selection.Snapshot) []selection.Option { return s.Variants }

	return []selectStep{
		{level: "industry", want: f.industry, list: list(compare.SideA, industries), choose: orch.SelectIndustry},
		{level: "technology", want: f.technology, list: list(compare.SideA, technologies), choose: orch.SelectTechnology},
		{
			level: "solution A", want: f.solutionA, list: list(compare.SideA, solutions),
			choose: onSide(compare.SideA, orch.SelectSolution),
		},
		{
			level: "variant A", want: f.variantA, list: list(compare.SideA, variants),
			choose: onSide(compare.SideA, orch.SelectVariant),
		},
		{
			level: "solution B", want: f.solutionB, list: list(compare.SideB, solutions),
			choose: onSide(compare.SideB, orch.SelectSolution),
		},
		{
			level: "variant B", want: f.variantB, list: list(compare.SideB, variants),
			choose: onSide(compare.SideB, orch.SelectVariant),
		},
	}
}

func describeProblems(snap compare.Snapshot) string {
	var sb strings.Builder
	for _, side := range []instance.Snapshot{snap.A, snap.B} {
		for _, p := range side.Problems {
			_, _ = fmt.Fprintf(&sb, "  %s: %s\n", side.Label, p)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderComparison(w io.Writer, snap compare.Snapshot) error {
	header := fmt.Sprintf("A: %s / %s    B: %s / %s\n\n",
		snap.A.Selection.SolutionName, snap.A.Selection.State.VariantID,
		snap.B.Selection.SolutionName, snap.B.Selection.State.VariantID)
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	for _, side := range []instance.Snapshot{snap.A, snap.B} {
		if side.ResultErr == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s failed: %v\n\n", side.Label, side.ResultErr); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, tui.RenderDiffTable(snap.Diff))
	return err
}

// diffRowJSON is the machine-readable form of compare.DiffRow.
type diffRowJSON struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	A           any    `json:"a"`
	B           any    `json:"b"`
	Difference  string `json:"difference,omitempty"`
	Percentage  string `json:"percentage,omitempty"`
	IsDifferent bool   `json:"is_different"`
}

func comparisonJSON(snap compare.Snapshot) map[string]any {
	rows := make([]diffRowJSON, 0, len(snap.Diff))
	for _, r := range snap.Diff {
		row := diffRowJSON{Key: r.Key, Label: r.Label, A: r.A, B: r.B, IsDifferent: r.IsDifferent}
		if r.Numeric {
			row.Difference = r.Difference.String()
			if r.Percentage != nil {
				row.Percentage = r.Percentage.StringFixed(1)
			}
		}
		rows = append(rows, row)
	}
	return map[string]any{
		"industry_id":     snap.SharedIndustryID,
		"technology_id":   snap.SharedTechnologyID,
		"include_it_cost": snap.IncludeITCost,
		"a":               sideJSON(snap.A),
		"b":               sideJSON(snap.B),
		"diff":            rows,
	}
}

func sideJSON(s instance.Snapshot) map[string]any {
	out := map[string]any{
		"solution":   s.Selection.SolutionName,
		"variant_id": s.Selection.State.VariantID,
		"result":     s.Result,
	}
	if s.ResultErr != nil {
		out["error"] = s.ResultErr.Error()
	}
	return out
}
