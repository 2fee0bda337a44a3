// Package instance composes one configuration: a selection chain, its field
// schema, the derived-field engine, the validation gate and calculation.
package instance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/config"
	"github.com/rshade/tcocalc/internal/derivation"
	"github.com/rshade/tcocalc/internal/logging"
	"github.com/rshade/tcocalc/internal/schema"
	"github.com/rshade/tcocalc/internal/selection"
	"github.com/rshade/tcocalc/internal/validation"
)

// ErrIncomplete is returned by Calculate when the validation gate fails.
var ErrIncomplete = errors.New("configuration incomplete")

// Deps are the collaborators of an Instance.
type Deps struct {
	Lister  selection.Lister
	Fetcher schema.Fetcher
	Engine  calculation.Engine
	Tables  config.Tables
	Timeout time.Duration
}

// Snapshot is a point-in-time copy of an Instance.
type Snapshot struct {
	Label     string
	Selection selection.Snapshot
	Fields    *schema.FieldSet
	Loading   bool
	SchemaErr error
	Valid     bool
	Problems  []validation.Problem
	Result    calculation.Result
	ResultErr error
}

// Instance is safe for concurrent use. Change listeners run on the goroutine
// that made the change, after all instance locks are released.
type Instance struct {
	label    string
	resolver *selection.Resolver
	loader   *schema.Loader
	deriver  *derivation.Engine
	invoker  *calculation.Invoker
	mapping  calculation.Mapping

	mu        sync.Mutex
	selGen    uint64
	result    calculation.Result
	resultErr error
	listeners []func()
}

// New wires an Instance from deps. The lookup tables are taken from
// deps.Tables; a derivation rule with no target disables derivation.
func New(label string, deps Deps) *Instance {
	in := &Instance{
		label:   label,
		mapping: MappingFromTables(deps.Tables),
		invoker: calculation.NewInvoker(deps.Engine, deps.Timeout),
	}
	if d := deps.Tables.Derivation; d.Target != "" {
		in.deriver = derivation.NewEngine(
			derivation.Rule{Target: d.Target, Utilisation: d.UtilisationField, Location: d.LocationField},
			derivation.NewTable(d.Values, d.LocationAliases),
		)
	}
	in.loader = schema.NewLoader(deps.Fetcher,
		schema.WithCategories(deps.Tables.FieldCategories),
		schema.WithApplyHook(in.applyDerivation),
	)
	in.resolver = selection.NewResolver(deps.Lister, in.loader)
	return in
}

// MappingFromTables converts the configured request-mapping tables.
func MappingFromTables(t config.Tables) calculation.Mapping {
	fields := make(map[string]calculation.FieldRule, len(t.Calculation.Fields))
	for id, r := range t.Calculation.Fields {
		fields[id] = calculation.FieldRule{Key: r.Key, Coerce: calculation.Coercion(r.Coerce)}
	}
	return calculation.NewMapping(fields, t.Calculation.SolutionTypes)
}

// Label names the instance in logs and errors.
func (in *Instance) Label() string { return in.label }

// OnChange registers fn to be called after every selection, schema, field or
// result change.
func (in *Instance) OnChange(fn func()) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.listeners = append(in.listeners, fn)
}

func (in *Instance) notify() {
	in.mu.Lock()
	listeners := append([]func(){}, in.listeners...)
	in.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (in *Instance) applyDerivation(ctx context.Context, fs *schema.FieldSet) {
	if in.deriver != nil {
		in.deriver.Apply(ctx, fs)
	}
}

// State returns the current selection.
func (in *Instance) State() selection.State { return in.resolver.State() }

// SolutionName returns the selected solution's display name.
func (in *Instance) SolutionName() string { return in.resolver.SolutionName() }

// Fields returns a copy of the current FieldSet.
func (in *Instance) Fields() *schema.FieldSet { return in.loader.Snapshot() }

// Loading reports whether a schema load is in flight.
func (in *Instance) Loading() bool { return in.loader.Loading() }

// Valid reports the validation gate result.
func (in *Instance) Valid() bool {
	return validation.IsComplete(in.resolver.State(), in.loader.Loading(), in.loader.Snapshot())
}

// Problems lists why the gate fails.
func (in *Instance) Problems() []validation.Problem {
	return validation.Missing(in.resolver.State(), in.loader.Loading(), in.loader.Snapshot())
}

// Result returns the stored result of the last calculation, or its error.
func (in *Instance) Result() (calculation.Result, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.result.Clone(), in.resultErr
}

// Snapshot captures selection, fields, validity and result together.
func (in *Instance) Snapshot() Snapshot {
	sel := in.resolver.Snapshot()
	loading := in.loader.Loading()
	fields := in.loader.Snapshot()
	problems := validation.Missing(sel.State, loading, fields)
	schemaErr := in.loader.Err()

	in.mu.Lock()
	defer in.mu.Unlock()
	return Snapshot{
		Label:     in.label,
		Selection: sel,
		Fields:    fields,
		Loading:   loading,
		SchemaErr: schemaErr,
		Valid:     len(problems) == 0,
		Problems:  problems,
		Result:    in.result.Clone(),
		ResultErr: in.resultErr,
	}
}

// LoadIndustries fetches the root list.
func (in *Instance) LoadIndustries(ctx context.Context) error {
	err := in.resolver.LoadIndustries(ctx)
	in.notify()
	return err
}

// SelectIndustry selects an industry and fetches its technologies.
func (in *Instance) SelectIndustry(ctx context.Context, id string) error {
	return in.run(ctx, in.StageIndustry(id), nil)
}

// SelectTechnology selects a technology and fetches its solutions.
func (in *Instance) SelectTechnology(ctx context.Context, id string) error {
	fetch, err := in.StageTechnology(id)
	return in.run(ctx, fetch, err)
}

// SelectSolution selects a solution and fetches its variants.
func (in *Instance) SelectSolution(ctx context.Context, id string) error {
	fetch, err := in.StageSolution(id)
	return in.run(ctx, fetch, err)
}

// SelectVariant selects a variant and loads its field schema.
func (in *Instance) SelectVariant(ctx context.Context, id string) error {
	fetch, err := in.StageVariant(id)
	return in.run(ctx, fetch, err)
}

// MirrorUpstream force-applies an industry and technology, fetching the
// lists below both.
func (in *Instance) MirrorUpstream(ctx context.Context, industryID, technologyID string) error {
	fetch, err := in.StageMirror(industryID, technologyID)
	return in.run(ctx, fetch, err)
}

func (in *Instance) run(ctx context.Context, fetch selection.Fetch, err error) error {
	if err != nil {
		return err
	}
	in.notify()
	return fetch(ctx)
}

// StageIndustry applies the selection change without notifying listeners or
// fetching. The returned Fetch does both.
func (in *Instance) StageIndustry(id string) selection.Fetch {
	fetch := in.resolver.StageIndustry(id)
	in.selectionChanged()
	return in.wrap(fetch)
}

// StageTechnology is the staged form of SelectTechnology.
func (in *Instance) StageTechnology(id string) (selection.Fetch, error) {
	return in.stage(in.resolver.StageTechnology(id))
}

// StageSolution is the staged form of SelectSolution.
func (in *Instance) StageSolution(id string) (selection.Fetch, error) {
	return in.stage(in.resolver.StageSolution(id))
}

// StageVariant is the staged form of SelectVariant.
func (in *Instance) StageVariant(id string) (selection.Fetch, error) {
	return in.stage(in.resolver.StageVariant(id))
}

// StageMirror stages an industry and, when technologyID is set, a
// technology. The returned Fetch loads both lists.
func (in *Instance) StageMirror(industryID, technologyID string) (selection.Fetch, error) {
	if industryID == "" && technologyID != "" {
		return nil, selection.ErrParentNotSelected
	}
	fetches := []selection.Fetch{in.resolver.StageIndustry(industryID)}
	if technologyID != "" {
		fetchTech, err := in.resolver.StageTechnology(technologyID)
		if err != nil {
			return nil, err
		}
		fetches = append(fetches, fetchTech)
	}
	in.selectionChanged()
	return in.wrap(func(ctx context.Context) error {
		for _, f := range fetches {
			if err := f(ctx); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func (in *Instance) stage(fetch selection.Fetch, err error) (selection.Fetch, error) {
	if err != nil {
		return nil, err
	}
	in.selectionChanged()
	return in.wrap(fetch), nil
}

func (in *Instance) wrap(fetch selection.Fetch) selection.Fetch {
	return func(ctx context.Context) error {
		err := fetch(ctx)
		in.notify()
		return err
	}
}

// selectionChanged drops the stored result; it described another selection.
func (in *Instance) selectionChanged() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.selGen++
	in.result = nil
	in.resultErr = nil
}

// SetField stores a user value. Editing a derived field while either of its
// dependencies is empty fails with derivation.ErrFieldLocked. Changing a
// dependency re-runs derivation, which only fills an empty target.
func (in *Instance) SetField(ctx context.Context, id, value string) error {
	err := in.loader.Update(func(fs *schema.FieldSet) error {
		if !fs.Has(id) {
			return fmt.Errorf("%w: %s", schema.ErrFieldNotFound, id)
		}
		if in.deriver != nil && id == in.deriver.Rule().Target && in.deriver.Locked(fs) {
			return fmt.Errorf("%w: %s", derivation.ErrFieldLocked, id)
		}
		if err := fs.Set(id, value); err != nil {
			return err
		}
		if in.deriver != nil && in.deriver.IsDependency(id) {
			in.deriver.Apply(ctx, fs)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "instance").
		Str("operation", "set_field").
		Str("label", in.label).
		Str("field", id).
		Msg("field updated")
	in.notify()
	return nil
}

// Request builds the calculation request for the current fields.
func (in *Instance) Request() calculation.Request {
	return calculation.BuildRequest(in.loader.Snapshot(), in.resolver.SolutionName(), in.mapping)
}

// Calculate runs the gate and, if it passes, one calculation. A success is
// stored as the instance result; a failure clears it. A result that arrives
// after the selection changed is returned but not stored.
func (in *Instance) Calculate(ctx context.Context) (calculation.Result, error) {
	in.mu.Lock()
	gen := in.selGen
	in.mu.Unlock()

	if problems := in.Problems(); len(problems) > 0 {
		reasons := make([]string, 0, len(problems))
		for _, p := range problems {
			reasons = append(reasons, p.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(reasons, "; "))
	}

	res, err := in.invoker.Invoke(ctx, in.label, in.Request())

	in.mu.Lock()
	stored := gen == in.selGen
	if stored {
		if err != nil {
			in.result, in.resultErr = nil, err
		} else {
			in.result, in.resultErr = res.Clone(), nil
		}
	}
	in.mu.Unlock()

	if !stored {
		logging.FromContext(ctx).Debug().Ctx(ctx).
			Str("component", "instance").
			Str("label", in.label).
			Msg("selection changed during calculation, result not stored")
	}
	in.notify()
	return res, err
}
