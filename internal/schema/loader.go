package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rshade/tcocalc/internal/logging"
)

// ErrSchemaFetch marks a failed schema fetch. It is logged, never returned
// from Load.
var ErrSchemaFetch = errors.New("schema fetch failed")

// Fetcher retrieves the field descriptors for a variant, or for a solution
// name when no variant id is known.
type Fetcher interface {
	FetchSchema(ctx context.Context, variantID, solutionName string) ([]FieldDescriptor, error)
}

// Loader owns the FieldSet of one configuration instance.
//
// Every Load bumps a generation counter; a response is applied only if no
// newer Load or Discard happened while it was in flight.
type Loader struct {
	fetcher    Fetcher
	categories map[string]Category
	onApply    func(context.Context, *FieldSet)

	mu      sync.Mutex
	gen     uint64
	loading bool
	fields  *FieldSet
	lastErr error

	pendingVariant string
	pendingName    string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCategories sets the fallback field id → category map used when the
// schema does not carry a category.
func WithCategories(m map[string]string) LoaderOption {
	return func(l *Loader) {
		for id, c := range m {
			l.categories[id] = ParseCategory(c)
		}
	}
}

// WithApplyHook registers fn to run, under the loader lock, on every freshly
// applied FieldSet.
func WithApplyHook(fn func(context.Context, *FieldSet)) LoaderOption {
	return func(l *Loader) {
		l.onApply = fn
	}
}

// NewLoader returns a Loader with an empty FieldSet.
func NewLoader(f Fetcher, opts ...LoaderOption) *Loader {
	l := &Loader{
		fetcher:    f,
		categories: make(map[string]Category),
		fields:     NewFieldSet(nil),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches the schema and replaces the FieldSet wholesale. Values the
// user entered under the previous schema are not carried over.
//
// Fetch failures leave an empty FieldSet and are logged; Load returns a
// non-nil error only when ctx is done.
func (l *Loader) Load(ctx context.Context, variantID, solutionName string) error {
	return l.Complete(ctx, l.Begin(variantID, solutionName))
}

// Begin clears the FieldSet, records the schema key and returns a ticket for
// Complete. It does not block, so callers may invoke it while holding their
// own locks to order loads against other state changes.
func (l *Loader) Begin(variantID, solutionName string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.gen++
	l.fields = NewFieldSet(nil)
	l.lastErr = nil
	l.pendingVariant = variantID
	l.pendingName = solutionName
	l.loading = variantID != "" || solutionName != ""
	return l.gen
}

// Complete performs the fetch for ticket. Superseded tickets are skipped
// before fetching and dropped after.
func (l *Loader) Complete(ctx context.Context, ticket uint64) error {
	log := logging.FromContext(ctx)

	l.mu.Lock()
	if ticket != l.gen || !l.loading {
		l.mu.Unlock()
		return ctx.Err()
	}
	variantID, solutionName := l.pendingVariant, l.pendingName
	l.mu.Unlock()

	log.Debug().Ctx(ctx).
		Str("component", "schema").
		Str("operation", "load").
		Str("variant_id", variantID).
		Str("solution_name", solutionName).
		Uint64("generation", ticket).
		Msg("fetching field schema")

	descs, err := l.fetcher.FetchSchema(ctx, variantID, solutionName)

	l.mu.Lock()
	defer l.mu.Unlock()

	if ticket != l.gen {
		log.Debug().Ctx(ctx).
			Str("component", "schema").
			Uint64("generation", ticket).
			Uint64("current_generation", l.gen).
			Msg("dropping stale schema response")
		return ctx.Err()
	}
	l.loading = false

	if err != nil {
		l.lastErr = fmt.Errorf("%w: %w", ErrSchemaFetch, err)
		log.Warn().Ctx(ctx).
			Str("component", "schema").
			Str("variant_id", variantID).
			Err(l.lastErr).
			Msg("field schema unavailable, continuing with no fields")
		return ctx.Err()
	}

	for i := range descs {
		if descs[i].Category != "" && descs[i].Category != CategoryOther {
			continue
		}
		if c, ok := l.categories[descs[i].ID]; ok {
			descs[i].Category = c
		} else {
			descs[i].Category = CategoryOther
		}
	}
	l.fields = NewFieldSet(descs)
	if l.onApply != nil {
		l.onApply(ctx, l.fields)
	}

	log.Debug().Ctx(ctx).
		Str("component", "schema").
		Int("field_count", l.fields.Len()).
		Msg("field schema applied")
	return nil
}

// Discard drops the FieldSet and invalidates any in-flight Load.
func (l *Loader) Discard() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.loading = false
	l.fields = NewFieldSet(nil)
	l.lastErr = nil
}

// Loading reports whether a Load is in flight.
func (l *Loader) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Err returns the fetch error of the last applied Load, if any.
func (l *Loader) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Snapshot returns a copy of the current FieldSet.
func (l *Loader) Snapshot() *FieldSet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fields.Clone()
}

// Update runs fn against the live FieldSet under the loader lock.
func (l *Loader) Update(fn func(*FieldSet) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.fields)
}
