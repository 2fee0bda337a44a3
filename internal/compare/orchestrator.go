// Package compare runs two configuration instances side by side, keeping
// their industry and technology in lockstep and calculating both once both
// are complete.
package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/tcocalc/internal/calculation"
	"github.com/rshade/tcocalc/internal/instance"
	"github.com/rshade/tcocalc/internal/logging"
	"github.com/rshade/tcocalc/internal/selection"
)

// ErrNotActive is returned by operations that need Activate first.
var ErrNotActive = errors.New("comparison not active")

// Phase is the comparison state.
type Phase int

// Phases in order of progress.
const (
	PhaseIdle Phase = iota
	PhaseAwaitingBoth
	PhaseBothValid
	PhaseComputing
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingBoth:
		return "awaiting_both"
	case PhaseBothValid:
		return "both_valid"
	case PhaseComputing:
		return "computing"
	case PhaseComplete:
		return "complete"
	default:
		return "idle"
	}
}

// Side names one of the two instances.
type Side int

// Sides.
const (
	SideA Side = iota
	SideB
)

func (s Side) String() string {
	if s == SideB {
		return "B"
	}
	return "A"
}

// EventKind distinguishes Event payloads.
type EventKind int

// Event kinds.
const (
	EventPhase EventKind = iota
	EventResult
)

// Event is emitted on every phase change and every calculation completion of
// the current round.
type Event struct {
	Kind   EventKind
	Phase  Phase
	Round  uint64
	Side   Side
	Result calculation.Result
	Err    error
}

// Snapshot is a consistent view of the comparison.
type Snapshot struct {
	Phase              Phase
	Round              uint64
	SharedIndustryID   string
	SharedTechnologyID string
	A                  instance.Snapshot
	B                  instance.Snapshot
	IncludeITCost      bool
	// Diff is set once both sides hold a result.
	Diff []DiffRow
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithIncludeITCost sets the initial IT-cost toggle.
func WithIncludeITCost(include bool) Option {
	return func(o *Orchestrator) { o.diffOpts.IncludeITCost = include }
}

// WithITCostKeys sets the substrings identifying IT-cost result keys.
func WithITCostKeys(keys []string) Option {
	return func(o *Orchestrator) { o.diffOpts.ITCostKeys = append([]string(nil), keys...) }
}

// WithLabels sets display names for result keys.
func WithLabels(labels map[string]string) Option {
	return func(o *Orchestrator) { o.diffOpts.Labels = labels }
}

// WithEventBuffer sets the capacity of the Events channel.
func WithEventBuffer(n int) Option {
	return func(o *Orchestrator) { o.eventBuf = n }
}

// Orchestrator owns instances A and B. Once handed to New, the instances
// must only be driven through the Orchestrator.
type Orchestrator struct {
	a, b     *instance.Instance
	events   chan Event
	eventBuf int

	mu       sync.Mutex
	ctx      context.Context
	phase    Phase
	round    uint64
	done     chan struct{}
	diffOpts DiffOptions
}

// New returns an idle Orchestrator.
func New(a, b *instance.Instance, opts ...Option) *Orchestrator {
	o := &Orchestrator{a: a, b: b, eventBuf: 32}
	for _, opt := range opts {
		opt(o)
	}
	o.events = make(chan Event, o.eventBuf)
	a.OnChange(o.evaluate)
	b.OnChange(o.evaluate)
	return o
}

// Events delivers phase changes and calculation completions. Events are
// dropped when the buffer is full; Snapshot always has the latest state.
func (o *Orchestrator) Events() <-chan Event { return o.events }

// Activate enters comparison mode. ctx bounds the automatically triggered
// calculations. B is aligned to A's industry and technology.
func (o *Orchestrator) Activate(ctx context.Context) error {
	o.mu.Lock()
	if o.phase != PhaseIdle {
		o.mu.Unlock()
		return nil
	}
	st := o.a.State()
	fetch, err := o.b.StageMirror(st.IndustryID, st.TechnologyID)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.ctx = ctx
	o.setPhaseLocked(ctx, PhaseAwaitingBoth)
	o.evaluateLocked()
	o.mu.Unlock()

	return fetch(ctx)
}

// LoadIndustries fetches the industry list on both sides.
func (o *Orchestrator) LoadIndustries(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return o.a.LoadIndustries(gctx) })
	g.Go(func() error { return o.b.LoadIndustries(gctx) })
	return g.Wait()
}

// SelectIndustry selects the shared industry on A and mirrors it onto B.
func (o *Orchestrator) SelectIndustry(ctx context.Context, id string) error {
	o.mu.Lock()
	fa := o.a.StageIndustry(id)
	fb := o.b.StageIndustry(id)
	o.evaluateLocked()
	o.mu.Unlock()

	o.logShared(ctx, "select_industry", id)
	return runBoth(ctx, fa, fb)
}

// SelectTechnology selects the shared technology on A and mirrors it onto B.
func (o *Orchestrator) SelectTechnology(ctx context.Context, id string) error {
	o.mu.Lock()
	fa, err := o.a.StageTechnology(id)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	fb, err := o.b.StageTechnology(id)
	if err != nil {
		// Unreachable while B mirrors A; keep A and B aligned regardless.
		st := o.a.State()
		fb, err = o.b.StageMirror(st.IndustryID, st.TechnologyID)
		if err != nil {
			o.mu.Unlock()
			return fmt.Errorf("mirroring technology onto B: %w", err)
		}
	}
	o.evaluateLocked()
	o.mu.Unlock()

	o.logShared(ctx, "select_technology", id)
	return runBoth(ctx, fa, fb)
}

func runBoth(ctx context.Context, fa, fb selection.Fetch) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fa(gctx) })
	g.Go(func() error { return fb(gctx) })
	return g.Wait()
}

// SelectSolution selects side's own solution.
func (o *Orchestrator) SelectSolution(ctx context.Context, side Side, id string) error {
	return o.instance(side).SelectSolution(ctx, id)
}

// SelectVariant selects side's own variant.
func (o *Orchestrator) SelectVariant(ctx context.Context, side Side, id string) error {
	return o.instance(side).SelectVariant(ctx, id)
}

// SetField edits a field of side.
func (o *Orchestrator) SetField(ctx context.Context, side Side, id, value string) error {
	return o.instance(side).SetField(ctx, id, value)
}

// SetIncludeITCost toggles IT-cost keys in the diff.
func (o *Orchestrator) SetIncludeITCost(include bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.diffOpts.IncludeITCost = include
}

func (o *Orchestrator) instance(side Side) *instance.Instance {
	if side == SideB {
		return o.b
	}
	return o.a
}

// Recalculate starts a new round when both sides are valid.
func (o *Orchestrator) Recalculate(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase == PhaseIdle {
		return ErrNotActive
	}
	if !o.bothValid() {
		return fmt.Errorf("%w: both configurations must be complete", instance.ErrIncomplete)
	}
	o.setPhaseLocked(ctx, PhaseBothValid)
	o.startRoundLocked(ctx)
	return nil
}

// Wait blocks until the current round completes and returns the resulting
// snapshot. It fails with instance.ErrIncomplete when a side is not valid.
func (o *Orchestrator) Wait(ctx context.Context) (Snapshot, error) {
	for {
		o.mu.Lock()
		phase, done := o.phase, o.done
		o.mu.Unlock()

		switch phase {
		case PhaseIdle:
			return o.Snapshot(), ErrNotActive
		case PhaseComplete:
			return o.Snapshot(), nil
		case PhaseAwaitingBoth:
			return o.Snapshot(), fmt.Errorf("%w: waiting for both configurations", instance.ErrIncomplete)
		}
		if done == nil {
			return o.Snapshot(), nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return o.Snapshot(), ctx.Err()
		}
	}
}

// Snapshot returns the phase, both instances and their diff. The diff is
// built when both results are present, or once a round is complete and one
// side failed; the failed side then contributes no keys.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	phase, round, opts := o.phase, o.round, o.diffOpts
	a := o.a.Snapshot()
	b := o.b.Snapshot()
	o.mu.Unlock()

	s := Snapshot{
		Phase:              phase,
		Round:              round,
		SharedIndustryID:   a.Selection.State.IndustryID,
		SharedTechnologyID: a.Selection.State.TechnologyID,
		A:                  a,
		B:                  b,
		IncludeITCost:      opts.IncludeITCost,
	}
	both := a.Result != nil && b.Result != nil
	either := a.Result != nil || b.Result != nil
	if both || (phase == PhaseComplete && either) {
		s.Diff = Diff(a.Result, b.Result, opts)
	}
	return s
}

func (o *Orchestrator) bothValid() bool {
	return o.a.Valid() && o.b.Valid()
}

// evaluate is the instances' change listener.
func (o *Orchestrator) evaluate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evaluateLocked()
}

func (o *Orchestrator) evaluateLocked() {
	if o.phase == PhaseIdle {
		return
	}
	valid := o.bothValid()
	switch {
	case !valid && o.phase != PhaseAwaitingBoth:
		o.abandonRoundLocked()
		o.setPhaseLocked(o.ctx, PhaseAwaitingBoth)
	case valid && o.phase == PhaseAwaitingBoth:
		o.setPhaseLocked(o.ctx, PhaseBothValid)
		o.startRoundLocked(o.ctx)
	}
}

// startRoundLocked launches both calculations. Neither waits for the other,
// and a failure on one side does not cancel the other.
func (o *Orchestrator) startRoundLocked(ctx context.Context) {
	o.abandonRoundLocked()
	o.round++
	round := o.round
	o.done = make(chan struct{})
	o.setPhaseLocked(ctx, PhaseComputing)

	var g errgroup.Group
	for _, side := range []Side{SideA, SideB} {
		inst := o.instance(side)
		g.Go(func() error {
			res, err := inst.Calculate(ctx)
			o.deliver(ctx, Event{Kind: EventResult, Round: round, Side: side, Result: res, Err: err})
			return err
		})
	}
	go func() {
		o.finishRound(ctx, round, g.Wait())
	}()
}

// abandonRoundLocked wakes waiters of an in-flight round and advances the
// round number so its late completions are dropped.
func (o *Orchestrator) abandonRoundLocked() {
	if o.done == nil {
		return
	}
	close(o.done)
	o.done = nil
	o.round++
}

func (o *Orchestrator) finishRound(ctx context.Context, round uint64, err error) {
	log := logging.FromContext(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()

	if round != o.round || o.phase != PhaseComputing {
		log.Debug().Ctx(ctx).
			Str("component", "compare").
			Uint64("round", round).
			Uint64("current_round", o.round).
			Msg("dropping completion of abandoned round")
		return
	}
	if err != nil {
		log.Warn().Ctx(ctx).
			Str("component", "compare").
			Uint64("round", round).
			Err(err).
			Msg("comparison round finished with errors")
	}
	o.setPhaseLocked(ctx, PhaseComplete)
	close(o.done)
	o.done = nil
}

func (o *Orchestrator) deliver(ctx context.Context, ev Event) {
	o.mu.Lock()
	current := ev.Round == o.round
	o.mu.Unlock()
	if !current {
		return
	}
	o.emit(ctx, ev)
}

func (o *Orchestrator) setPhaseLocked(ctx context.Context, p Phase) {
	if o.phase == p {
		return
	}
	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "compare").
		Str("from", o.phase.String()).
		Str("to", p.String()).
		Uint64("round", o.round).
		Msg("phase changed")
	o.phase = p
	o.emit(ctx, Event{Kind: EventPhase, Phase: p, Round: o.round})
}

func (o *Orchestrator) emit(ctx context.Context, ev Event) {
	select {
	case o.events <- ev:
	default:
		logging.FromContext(ctx).Debug().Ctx(ctx).
			Str("component", "compare").
			Msg("event buffer full, dropping event")
	}
}

func (o *Orchestrator) logShared(ctx context.Context, op, id string) {
	logging.FromContext(ctx).Debug().Ctx(ctx).
		Str("component", "compare").
		Str("operation", op).
		Str("id", id).
		Msg("shared selection mirrored onto B")
}
