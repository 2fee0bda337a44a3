package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/logging"
	"github.com/rshade/tcocalc/internal/tracing"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// skipConfigLoad marks commands that must run even when the config file is
// invalid; they start from defaults instead.
const skipConfigLoad = "tcocalc/skip-config-load"

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the tcocalc CLI. It loads
// configuration, wires logging, audit and tracing, and registers the
// catalog, calculate, compare, serve and config subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var (
		logResult *logging.LogPathResult
		shutdown  tracing.ShutdownFunc
	)

	cmd := &cobra.Command{
		Use:           "tcocalc",
		Short:         "Total cost of ownership calculator for cooling solutions",
		Long:          "tcocalc: configure, calculate and compare total cost of ownership for data centre cooling solutions",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.New()
			if cmd.Annotations[skipConfigLoad] == "" {
				var err error
				if cfg, err = loadConfig(cmd); err != nil {
					return err
				}
			}
			config.InitGlobalConfig(cfg)

			result := setupLogging(cmd)
			logResult = &result

			var err error
			shutdown, err = tracing.Setup(cmd.Context(), tracing.Config{
				Enabled:     cfg.Tracing.Enabled,
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				Insecure:    cfg.Tracing.Insecure,
				Version:     ver,
			})
			if err != nil {
				logger.Warn().Ctx(cmd.Context()).Err(err).Msg("tracing disabled")
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			var errs []error
			if shutdown != nil {
				errs = append(errs, shutdown(cmd.Context()))
			}
			errs = append(errs, cleanupLogging(cmd, logResult))
			return errors.Join(errs...)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file (default ~/.tcocalc/config.yaml)")
	cmd.PersistentFlags().String("api-url", "", "base URL of the catalog and calculation service")
	cmd.PersistentFlags().Duration("timeout", 0, "calculation timeout (0 = use config default)")
	cmd.PersistentFlags().
		Int("cache-ttl", -1, "catalog cache TTL in seconds (0 disables caching, default from config)")

	cmd.AddCommand(
		newCatalogCmd(),
		NewCalculateCmd(),
		NewCompareCmd(),
		NewServeCmd(),
		newConfigCmd(),
	)
	return cmd
}

// loadConfig reads the config file named by --config (or the default) and
// applies flag overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if apiURL, _ := cmd.Flags().GetString("api-url"); apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if cmd.Flags().Changed("timeout") {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		if timeout <= 0 {
			return nil, fmt.Errorf("timeout must be positive, got %s", timeout)
		}
		cfg.Calculation.Timeout = timeout
	}
	if cmd.Flags().Changed("cache-ttl") {
		ttl, _ := cmd.Flags().GetInt("cache-ttl")
		if ttl < 0 {
			return nil, fmt.Errorf("cache-ttl must be >= 0, got %d", ttl)
		}
		cfg.Cache.TTLSeconds = ttl
		cfg.Cache.Enabled = ttl > 0
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

const rootCmdExample = `  # Browse the catalog
  tcocalc catalog industries
  tcocalc catalog solutions --industry data-centres --technology cooling-systems

  # Calculate one configuration
  tcocalc calculate --industry data-centres --technology cooling-systems \
    --solution air-cooling --variant crah-units \
    --set project_location="United Kingdom" --set utilisation_percentage=40% \
    --set data_hall_capacity=10 --set planned_years_operation=10 \
    --set first_year_operation=2026 --set data_centre_type=Greenfield

  # Compare two solutions interactively
  tcocalc compare --industry data-centres --technology cooling-systems \
    --solution-a air-cooling --variant-a crah-units \
    --solution-b liquid-cooling --variant-b chassis-immersion --interactive

  # Serve the reference catalog locally
  tcocalc serve --addr 127.0.0.1:3000

  # Initialize configuration
  tcocalc config init`

// newConfigCmd creates the config command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigValidateCmd(), NewConfigShowCmd())
	return cmd
}

// requestDeadline bounds commands that wait on remote work.
func requestDeadline(cfg *config.Config) time.Duration {
	return cfg.API.RequestTimeout*4 + cfg.Calculation.Timeout*2
}
