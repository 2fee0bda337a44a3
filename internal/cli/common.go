package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rshade/tcocalc/internal/apiclient"
	"github.com/rshade/tcocalc/internal/cache"
	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/instance"
	"github.com/rshade/tcocalc/internal/selection"
)

// Output formats accepted by --output.
const (
	OutputTable = "table"
	OutputJSON  = "json"
)

// Exit codes returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitCalculation = 2
	ExitIncomplete  = 3
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, calculation.ErrCalculation):
		return ExitCalculation
	case errors.Is(err, instance.ErrIncomplete):
		return ExitIncomplete
	default:
		return ExitFailure
	}
}

// newAPIClient builds a client for the configured service, with the catalog
// cache when enabled.
func newAPIClient(ctx context.Context, cfg *config.Config) (*apiclient.Client, error) {
	opts := []apiclient.Option{
		apiclient.WithVersionConstraint(cfg.API.VersionConstraint, cfg.API.StrictCompatibility),
	}
	if cfg.Cache.Enabled {
		store, err := cache.NewFileStore(cfg.Cache.Directory, true, cfg.Cache.TTLSeconds, cfg.Cache.MaxSizeMB)
		if err != nil {
			logger.Warn().Ctx(ctx).Err(err).Str("dir", cfg.Cache.Directory).Msg("catalog cache unavailable")
		} else {
			opts = append(opts, apiclient.WithCache(store))
		}
	}
	return apiclient.New(cfg.API.BaseURL, cfg.API.RequestTimeout, opts...)
}

// instanceDeps wires an instance to client and the configured tables.
func instanceDeps(client *apiclient.Client, cfg *config.Config) instance.Deps {
	return instance.Deps{
		Lister:  client,
		Fetcher: client,
		Engine:  client,
		Tables:  cfg.Tables,
		Timeout: cfg.Calculation.Timeout,
	}
}

// resolveOption matches want against an option id, then a display name
// (case-insensitively). An empty list passes want through unchanged.
func resolveOption(level string, opts []selection.Option, want string) (string, error) {
	want = strings.TrimSpace(want)
	if want == "" {
		return "", fmt.Errorf("%s is required", level)
	}
	if len(opts) == 0 {
		return want, nil
	}
	for _, o := range opts {
		if o.ID == want {
			return o.ID, nil
		}
	}
	for _, o := range opts {
		if strings.EqualFold(o.Name, want) {
			return o.ID, nil
		}
	}
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		names = append(names, o.ID)
	}
	return "", fmt.Errorf("unknown %s %q (available: %s)", level, want, strings.Join(names, ", "))
}

// selectStep chooses one hierarchy level.
type selectStep struct {
	level  string
	want   string
	list   func() []selection.Option
	choose func(ctx context.Context, id string) error
}

func runSelectSteps(ctx context.Context, steps []selectStep) error {
	for _, s := range steps {
		id, err := resolveOption(s.level, s.list(), s.want)
		if err != nil {
			return err
		}
		if err := s.choose(ctx, id); err != nil {
			return fmt.Errorf("selecting %s %q: %w", s.level, id, err)
		}
	}
	return nil
}

// parseAssignments parses repeated key=value flags, preserving order.
func parseAssignments(raw []string) ([][2]string, error) {
	out := make([][2]string, 0, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected field=value", kv)
		}
		out = append(out, [2]string{key, strings.TrimSpace(value)})
	}
	return out, nil
}

func validateOutput(format string) error {
	switch format {
	case OutputTable, OutputJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format %q (use %s or %s)", format, OutputTable, OutputJSON)
	}
}

// sortedKeys returns labelled result keys first, then the rest, each group
// alphabetically.
func sortedKeys(r calculation.Result, labels map[string]string) []string {
	keys := r.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		_, li := labels[keys[i]]
		_, lj := labels[keys[j]]
		if li != lj {
			return li
		}
		return keys[i] < keys[j]
	})
	return keys
}
