package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/tcocalc/internal/config"
)

// NewConfigInitCmd creates the config init command for initializing configuration.
func NewConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:         "init",
		Annotations: map[string]string{skipConfigLoad: "true"},
		Short: "Initialize configuration file with default values",
		Long: `Creates a configuration file with default values, including the lookup
tables used for derived fields and calculation requests. The file is written to
~/.tcocalc/config.yaml, or to the path given with --config.`,
		Example: `  # Create configuration
  tcocalc config init

  # Create configuration, overwriting existing
  tcocalc config init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.New()
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				cfg.SetConfigPath(path)
			}

			if !force {
				if _, err := os.Stat(cfg.ConfigPath()); err == nil {
					return errors.New("configuration file already exists, use --force to overwrite")
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("cannot access config path %s: %w", cfg.ConfigPath(), err)
				}
			}

			if err := cfg.Save(); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			cmd.Printf("Configuration initialized successfully\n")
			cmd.Printf("Configuration file: %s\n", cfg.ConfigPath())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	return cmd
}
