package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/tcocalc/internal/config"
)

// NewConfigValidateCmd creates the config validate command.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:         "validate",
		Annotations: map[string]string{skipConfigLoad: "true"},
		Short: "Validate configuration file",
		Long: `Validates the configuration file for syntax and semantic correctness,
including the derivation, request-mapping and result-label tables.`,
		Example: `  tcocalc config validate
  tcocalc config validate --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			cmd.Println("Configuration is valid")
			if verbose {
				t := cfg.Tables
				cmd.Printf("  Config file:         %s\n", cfg.ConfigPath())
				cmd.Printf("  API base URL:        %s\n", cfg.API.BaseURL)
				cmd.Printf("  Calculation timeout: %s\n", cfg.Calculation.Timeout)
				cmd.Printf("  Derived field:       %s (from %s, %s)\n",
					t.Derivation.Target, t.Derivation.UtilisationField, t.Derivation.LocationField)
				cmd.Printf("  Derivation rows:     %d\n", len(t.Derivation.Values))
				cmd.Printf("  Request fields:      %d\n", len(t.Calculation.Fields))
				cmd.Printf("  Solution types:      %d\n", len(t.Calculation.SolutionTypes))
				cmd.Printf("  IT-cost keys:        %d\n", len(t.ITCostKeys))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")
	return cmd
}

// NewConfigShowCmd creates the config show command, which prints the
// effective configuration after file, environment and flag overrides.
func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := yaml.Marshal(config.GetGlobalConfig())
			if err != nil {
				return fmt.Errorf("marshalling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
