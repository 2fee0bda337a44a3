package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/schema"
	"github.com/rshade/tcocalc/internal/selection"
)

// newCatalogCmd creates the catalog command group for browsing the
// industry → technology → solution → variant hierarchy.
func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse the solution catalog",
	}
	cmd.PersistentFlags().StringP("output", "o", "", "output format: table or json (default from config)")
	cmd.AddCommand(
		newCatalogListCmd("industries", "List industries", nil,
			func(ctx context.Context, c catalogClient, _ map[string]string) ([]selection.Option, error) {
				return c.ListIndustries(ctx)
			}),
		newCatalogListCmd("technologies", "List technologies of an industry", []string{"industry"},
			func(ctx context.Context, c catalogClient, f map[string]string) ([]selection.Option, error) {
				return c.ListTechnologies(ctx, f["industry"])
			}),
		newCatalogListCmd("solutions", "List solutions of an industry and technology", []string{"industry", "technology"},
			func(ctx context.Context, c catalogClient, f map[string]string) ([]selection.Option, error) {
				return c.ListSolutions(ctx, f["industry"], f["technology"])
			}),
		newCatalogListCmd("variants", "List variants of a solution", []string{"solution"},
			func(ctx context.Context, c catalogClient, f map[string]string) ([]selection.Option, error) {
				return c.ListVariants(ctx, f["solution"])
			}),
		newCatalogSchemaCmd(),
	)
	return cmd
}

// catalogClient is the part of apiclient.Client the catalog commands use.
type catalogClient interface {
	selection.Lister
	schema.Fetcher
}

type listFunc func(ctx context.Context, c catalogClient, flags map[string]string) ([]selection.Option, error)

func newCatalogListCmd(use, short string, required []string, list listFunc) *cobra.Command {
	values := make(map[string]*string, len(required))
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			format, err := outputFormat(cmd, cfg)
			if err != nil {
				return err
			}
			flags := make(map[string]string, len(values))
			for name, v := range values {
				flags[name] = *v
			}

			client, err := newAPIClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			opts, err := list(cmd.Context(), client, flags)
			if err != nil {
				return err
			}
			return renderOptions(cmd.OutOrStdout(), format, opts)
		},
	}
	for _, name := range required {
		values[name] = cmd.Flags().String(name, "", name+" id")
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newCatalogSchemaCmd() *cobra.Command {
	var variant, solutionName string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the configuration fields of a solution variant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()
			format, err := outputFormat(cmd, cfg)
			if err != nil {
				return err
			}
			client, err := newAPIClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fields, err := client.FetchSchema(cmd.Context(), variant, solutionName)
			if err != nil {
				return err
			}
			return renderFields(cmd.OutOrStdout(), format, fields)
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "", "solution variant id")
	cmd.Flags().StringVar(&solutionName, "solution-name", "", "solution display name, used when the variant has no schema of its own")
	_ = cmd.MarkFlagRequired("variant")
	return cmd
}

func outputFormat(cmd *cobra.Command, cfg *config.Config) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	if format == "" {
		format = cfg.Output.DefaultFormat
	}
	return format, validateOutput(format)
}

func renderOptions(w io.Writer, format string, opts []selection.Option) error {
	if format == OutputJSON {
		return writeJSON(w, opts)
	}
	if len(opts) == 0 {
		_, err := fmt.Fprintln(w, "No entries")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
	for _, o := range opts {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", o.ID, o.Name, o.Description)
	}
	return tw.Flush()
}

// fieldJSON is the machine-readable form of a schema field.
type fieldJSON struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Kind     string          `json:"kind"`
	Value    string          `json:"value,omitempty"`
	Unit     string          `json:"unit,omitempty"`
	Required bool            `json:"required"`
	Derived  bool            `json:"derived,omitempty"`
	Category schema.Category `json:"category"`
	Options  []string        `json:"options,omitempty"`
	Min      *float64        `json:"min,omitempty"`
	Max      *float64        `json:"max,omitempty"`
}

func toFieldJSON(fields []schema.FieldDescriptor) []fieldJSON {
	out := make([]fieldJSON, 0, len(fields))
	for _, f := range fields {
		out = append(out, fieldJSON{
			ID: f.ID, Label: f.Label, Kind: f.Kind.String(), Value: f.Value, Unit: f.Unit,
			Required: f.Required, Derived: f.IsDerived, Category: f.Category,
			Options: f.Options, Min: f.Min, Max: f.Max,
		})
	}
	return out
}

func renderFields(w io.Writer, format string, fields []schema.FieldDescriptor) error {
	if format == OutputJSON {
		return writeJSON(w, toFieldJSON(fields))
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tLABEL\tTYPE\tREQUIRED\tVALUE\tCATEGORY")
	for _, f := range fields {
		value := f.Value
		if f.Unit != "" && value != "" {
			value += " " + f.Unit
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n", f.ID, f.Label, f.Kind, f.Required, value, f.Category)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
