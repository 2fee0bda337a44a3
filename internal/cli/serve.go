package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/devserver"
	"github.com/rshade/tcocalc/internal/logging"
)

// DefaultServeAddr is where serve listens unless --addr is given.
const DefaultServeAddr = "127.0.0.1:3000"

// NewServeCmd creates the serve command, which runs the reference catalog
// and calculation engine locally.
func NewServeCmd() *cobra.Command {
	var addr, fixture string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a reference catalog and calculation engine",
		Long: `Runs an HTTP server exposing the catalog and calculation routes the
calculator consumes, backed by a built-in reference catalog or a fixture file.
Useful for local development and demos; point --api-url at it.`,
		Example: `  tcocalc serve --addr 127.0.0.1:3000
  tcocalc --api-url http://127.0.0.1:3000 catalog industries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := devserver.DefaultFixture()
			if fixture != "" {
				var err error
				if f, err = devserver.LoadFixture(fixture); err != nil {
					return err
				}
			}
			cfg := config.GetGlobalConfig()
			srv := devserver.New(f,
				devserver.WithLogger(logging.ComponentLogger(*logging.FromContext(cmd.Context()), "devserver")),
				devserver.WithLocationAliases(cfg.Tables.Derivation.LocationAliases),
			)
			cmd.Printf("Serving reference engine on http://%s (Ctrl+C to stop)\n", addr)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", DefaultServeAddr, "listen address")
	cmd.Flags().StringVar(&fixture, "fixture", "", "catalog fixture YAML (default: built-in reference catalog)")
	return cmd
}
