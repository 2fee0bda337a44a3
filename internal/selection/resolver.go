package selection

import (
	"context"
	"errors"
	"sync"

	"github.com/rshade/tcocalc/internal/logging"
)

// ErrParentNotSelected is returned when a level is selected before its parent.
var ErrParentNotSelected = errors.New("parent level not selected")

// Lister fetches the options of each level.
type Lister interface {
	ListIndustries(ctx context.Context) ([]Option, error)
	ListTechnologies(ctx context.Context, industryID string) ([]Option, error)
	ListSolutions(ctx context.Context, industryID, technologyID string) ([]Option, error)
	ListVariants(ctx context.Context, solutionID string) ([]Option, error)
}

// SchemaTarget receives schema load requests once a variant is chosen and is
// told to drop its fields whenever the selection above it changes.
// Begin and Discard are called with the resolver lock held and must not block.
type SchemaTarget interface {
	Begin(variantID, solutionName string) uint64
	Complete(ctx context.Context, ticket uint64) error
	Discard()
}

// Fetch completes a staged selection by performing its network call.
type Fetch func(ctx context.Context) error

// Snapshot is a copy of the resolver's state and option lists.
type Snapshot struct {
	State        State
	SolutionName string
	Industries   []Option
	Technologies []Option
	Solutions    []Option
	Variants     []Option
}

// Resolver holds one selection chain.
//
// Each setter first changes state under the lock (clearing descendants and
// bumping their list generations) and then fetches the next level's list.
// A list response is applied only if its level's generation is unchanged,
// so a slow response for an abandoned parent never lands.
type Resolver struct {
	lister Lister
	target SchemaTarget

	mu           sync.Mutex
	state        State
	solutionName string
	lists        [levelCount][]Option
	gen          [levelCount]uint64
	lastErr      error
}

// NewResolver returns an empty Resolver. target may be nil.
func NewResolver(lister Lister, target SchemaTarget) *Resolver {
	return &Resolver{lister: lister, target: target}
}

// State returns the current selection.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SolutionName returns the display name of the selected solution.
func (r *Resolver) SolutionName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.solutionName
}

// Snapshot returns copies of the state and all option lists.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		State:        r.state,
		SolutionName: r.solutionName,
		Industries:   append([]Option(nil), r.lists[LevelIndustry]...),
		Technologies: append([]Option(nil), r.lists[LevelTechnology]...),
		Solutions:    append([]Option(nil), r.lists[LevelSolution]...),
		Variants:     append([]Option(nil), r.lists[LevelVariant]...),
	}
}

// Err returns the most recent list fetch error, if the latest fetch of that
// list failed.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// LoadIndustries fetches the root list.
func (r *Resolver) LoadIndustries(ctx context.Context) error {
	r.mu.Lock()
	gen := r.bumpLocked(LevelIndustry)
	r.mu.Unlock()

	return r.fetchList(ctx, LevelIndustry, gen, "", func(ctx context.Context) ([]Option, error) {
		return r.lister.ListIndustries(ctx)
	})
}

// SelectIndustry sets the industry, clears everything below it and fetches
// the technology list. An empty id clears the whole chain.
func (r *Resolver) SelectIndustry(ctx context.Context, id string) error {
	return r.StageIndustry(id)(ctx)
}

// SelectTechnology sets the technology, clears solution and variant and
// fetches the solution list.
func (r *Resolver) SelectTechnology(ctx context.Context, id string) error {
	fetch, err := r.StageTechnology(id)
	if err != nil {
		return err
	}
	return fetch(ctx)
}

// SelectSolution sets the solution, clears the variant and fetches the
// variant list.
func (r *Resolver) SelectSolution(ctx context.Context, id string) error {
	fetch, err := r.StageSolution(id)
	if err != nil {
		return err
	}
	return fetch(ctx)
}

// SelectVariant sets the variant and loads its field schema.
func (r *Resolver) SelectVariant(ctx context.Context, id string) error {
	fetch, err := r.StageVariant(id)
	if err != nil {
		return err
	}
	return fetch(ctx)
}

// StageIndustry applies the state change of SelectIndustry and returns the
// pending list fetch. Re-selecting the current id still clears and refetches.
func (r *Resolver) StageIndustry(id string) Fetch {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.IndustryID = id
	r.state.clearBelow(LevelIndustry)
	r.solutionName = ""
	gen := r.invalidateLocked(LevelTechnology)

	return func(ctx context.Context) error {
		r.logSelect(ctx, LevelIndustry, id)
		if id == "" {
			return nil
		}
		return r.fetchList(ctx, LevelTechnology, gen, id, func(ctx context.Context) ([]Option, error) {
			return r.lister.ListTechnologies(ctx, id)
		})
	}
}

// StageTechnology applies the state change of SelectTechnology.
func (r *Resolver) StageTechnology(id string) (Fetch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IndustryID == "" {
		return nil, ErrParentNotSelected
	}
	industryID := r.state.IndustryID
	r.state.TechnologyID = id
	r.state.clearBelow(LevelTechnology)
	r.solutionName = ""
	gen := r.invalidateLocked(LevelSolution)

	return func(ctx context.Context) error {
		r.logSelect(ctx, LevelTechnology, id)
		if id == "" {
			return nil
		}
		return r.fetchList(ctx, LevelSolution, gen, id, func(ctx context.Context) ([]Option, error) {
			return r.lister.ListSolutions(ctx, industryID, id)
		})
	}, nil
}

// StageSolution applies the state change of SelectSolution. The solution's
// display name is remembered as the schema fallback key.
func (r *Resolver) StageSolution(id string) (Fetch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.TechnologyID == "" {
		return nil, ErrParentNotSelected
	}
	r.state.SolutionID = id
	r.state.clearBelow(LevelSolution)
	r.solutionName = lookupName(r.lists[LevelSolution], id)
	gen := r.invalidateLocked(LevelVariant)

	return func(ctx context.Context) error {
		r.logSelect(ctx, LevelSolution, id)
		if id == "" {
			return nil
		}
		return r.fetchList(ctx, LevelVariant, gen, id, func(ctx context.Context) ([]Option, error) {
			return r.lister.ListVariants(ctx, id)
		})
	}, nil
}

// StageVariant applies the state change of SelectVariant and starts the
// schema load; the returned Fetch completes it.
func (r *Resolver) StageVariant(id string) (Fetch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.SolutionID == "" {
		return nil, ErrParentNotSelected
	}
	r.state.VariantID = id
	r.state.clearBelow(LevelVariant)

	if r.target == nil {
		return func(ctx context.Context) error {
			r.logSelect(ctx, LevelVariant, id)
			return nil
		}, nil
	}
	if id == "" {
		r.target.Discard()
		return func(context.Context) error { return nil }, nil
	}
	ticket := r.target.Begin(id, r.solutionName)

	return func(ctx context.Context) error {
		r.logSelect(ctx, LevelVariant, id)
		return r.target.Complete(ctx, ticket)
	}, nil
}

// invalidateLocked bumps the generation of from and every deeper list,
// empties those lists and discards the schema. It returns the new generation
// of from.
func (r *Resolver) invalidateLocked(from Level) uint64 {
	for l := from; l <= LevelVariant; l++ {
		r.bumpLocked(l)
	}
	if r.target != nil {
		r.target.Discard()
	}
	return r.gen[from]
}

func (r *Resolver) bumpLocked(l Level) uint64 {
	r.gen[l]++
	r.lists[l] = nil
	return r.gen[l]
}

func (r *Resolver) fetchList(
	ctx context.Context,
	level Level,
	gen uint64,
	parentID string,
	fetch func(context.Context) ([]Option, error),
) error {
	log := logging.FromContext(ctx)
	opts, err := fetch(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gen[level] != gen {
		log.Debug().Ctx(ctx).
			Str("component", "selection").
			Str("level", level.String()).
			Uint64("generation", gen).
			Uint64("current_generation", r.gen[level]).
			Msg("dropping stale list response")
		return ctx.Err()
	}

	if err != nil {
		r.lastErr = &HierarchyFetchError{Level: level, ParentID: parentID, Err: err}
		r.lists[level] = nil
		log.Warn().Ctx(ctx).
			Str("component", "selection").
			Str("level", level.String()).
			Err(r.lastErr).
			Msg("list unavailable, treating as empty")
		return ctx.Err()
	}

	r.lastErr = nil
	r.lists[level] = opts
	log.Debug().Ctx(ctx).
		Str("component", "selection").
		Str("level", level.String()).
		Int("count", len(opts)).
		Msg("list loaded")
	return nil
}

func (r *Resolver) logSelect(ctx context.Context, level Level, id string) {
	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "selection").
		Str("operation", "select_"+level.String()).
		Str("id", id).
		Msg("selection changed")
}

func lookupName(opts []Option, id string) string {
	for _, o := range opts {
		if o.ID == id && o.Name != "" {
			return o.Name
		}
	}
	return id
}
