package schema

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher returns canned descriptors per variant id and can block a
// variant until released.
type stubFetcher struct {
	mu      sync.Mutex
	schemas map[string][]FieldDescriptor
	errs    map[string]error
	gates   map[string]chan struct{}
	started chan string
	calls   []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		schemas: map[string][]FieldDescriptor{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
	}
}

func (s *stubFetcher) FetchSchema(_ context.Context, variantID, solutionName string) ([]FieldDescriptor, error) {
	key := variantID
	if key == "" {
		key = "name:" + solutionName
	}
	s.mu.Lock()
	s.calls = append(s.calls, key)
	gate := s.gates[key]
	descs := append([]FieldDescriptor(nil), s.schemas[key]...)
	err := s.errs[key]
	s.mu.Unlock()

	s.started <- key
	if gate != nil {
		<-gate
	}
	return descs, err
}

func TestLoader_AppliesSchemaWithDefaults(t *testing.T) {
	f := newStubFetcher()
	f.schemas["v1"] = []FieldDescriptor{
		{ID: "data_hall_capacity", Kind: KindNumeric, Value: "10", Required: true},
		{ID: "project_location", Kind: KindEnumerated, Required: true},
		{ID: "annualised_liquid_cooled_ppue", Kind: KindNumeric, Category: CategoryCoolingB},
	}
	l := NewLoader(f, WithCategories(map[string]string{"data_hall_capacity": "data_center"}))

	require.NoError(t, l.Load(context.Background(), "v1", "Liquid Cooling"))

	fs := l.Snapshot()
	require.Equal(t, 3, fs.Len())
	assert.Equal(t, "10", fs.Value("data_hall_capacity"))
	assert.Empty(t, fs.Value("project_location"))
	assert.False(t, l.Loading())
	assert.NoError(t, l.Err())

	got, _ := fs.Get("data_hall_capacity")
	assert.Equal(t, CategoryDataCenter, got.Category)
	got, _ = fs.Get("project_location")
	assert.Equal(t, CategoryOther, got.Category)
	got, _ = fs.Get("annualised_liquid_cooled_ppue")
	assert.Equal(t, CategoryCoolingB, got.Category)
}

func TestLoader_FallsBackToSolutionName(t *testing.T) {
	f := newStubFetcher()
	f.schemas["name:Air Cooling"] = []FieldDescriptor{{ID: "x"}}
	l := NewLoader(f)

	require.NoError(t, l.Load(context.Background(), "", "Air Cooling"))
	assert.Equal(t, 1, l.Snapshot().Len())
}

func TestLoader_ReloadIsDestructive(t *testing.T) {
	f := newStubFetcher()
	f.schemas["v1"] = []FieldDescriptor{{ID: "project_location"}}
	f.schemas["v2"] = []FieldDescriptor{{ID: "project_location"}}
	l := NewLoader(f)
	ctx := context.Background()

	require.NoError(t, l.Load(ctx, "v1", ""))
	require.NoError(t, l.Update(func(fs *FieldSet) error { return fs.Set("project_location", "UK") }))
	assert.Equal(t, "UK", l.Snapshot().Value("project_location"))

	require.NoError(t, l.Load(ctx, "v2", ""))
	assert.Empty(t, l.Snapshot().Value("project_location"), "same id under a new variant starts empty")
}

func TestLoader_FailureClearsFields(t *testing.T) {
	f := newStubFetcher()
	f.schemas["v1"] = []FieldDescriptor{{ID: "a"}}
	f.errs["v2"] = errors.New("503 from catalog")
	l := NewLoader(f)
	ctx := context.Background()

	require.NoError(t, l.Load(ctx, "v1", ""))
	require.NoError(t, l.Load(ctx, "v2", ""))

	assert.Zero(t, l.Snapshot().Len())
	require.ErrorIs(t, l.Err(), ErrSchemaFetch)
	assert.False(t, l.Loading())
}

func TestLoader_DropsStaleResponse(t *testing.T) {
	f := newStubFetcher()
	f.schemas["slow"] = []FieldDescriptor{{ID: "slow_field"}}
	f.schemas["fast"] = []FieldDescriptor{{ID: "fast_field"}}
	release := make(chan struct{})
	f.gates["slow"] = release
	l := NewLoader(f)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- l.Load(ctx, "slow", "") }()
	require.Equal(t, "slow", <-f.started)
	assert.True(t, l.Loading())

	require.NoError(t, l.Load(ctx, "fast", ""))
	<-f.started
	close(release)
	require.NoError(t, <-done)

	fs := l.Snapshot()
	assert.True(t, fs.Has("fast_field"))
	assert.False(t, fs.Has("slow_field"))
	assert.False(t, l.Loading())
}

func TestLoader_DiscardInvalidatesInFlight(t *testing.T) {
	f := newStubFetcher()
	f.schemas["v1"] = []FieldDescriptor{{ID: "a"}}
	release := make(chan struct{})
	f.gates["v1"] = release
	l := NewLoader(f)

	done := make(chan error, 1)
	go func() { done <- l.Load(context.Background(), "v1", "") }()
	<-f.started

	l.Discard()
	assert.False(t, l.Loading())
	close(release)
	require.NoError(t, <-done)

	assert.Zero(t, l.Snapshot().Len())
}

func TestLoader_ApplyHook(t *testing.T) {
	f := newStubFetcher()
	f.schemas["v1"] = []FieldDescriptor{{ID: "a"}, {ID: "b"}}
	l := NewLoader(f, WithApplyHook(func(_ context.Context, fs *FieldSet) {
		_ = fs.SetDerived("b", fs.Value("a")+"!")
	}))

	require.NoError(t, l.Load(context.Background(), "v1", ""))
	got, _ := l.Snapshot().Get("b")
	assert.Equal(t, "!", got.Value)
	assert.True(t, got.IsDerived)
}

func TestLoader_NoKeyClears(t *testing.T) {
	f := newStubFetcher()
	l := NewLoader(f)
	require.NoError(t, l.Load(context.Background(), "", ""))
	assert.Zero(t, l.Snapshot().Len())
	assert.Empty(t, f.calls)
}

func TestLoader_SupersededTicketSkipsFetch(t *testing.T) {
	f := newStubFetcher()
	f.schemas["v1"] = []FieldDescriptor{{ID: "one"}}
	f.schemas["v2"] = []FieldDescriptor{{ID: "two"}}
	l := NewLoader(f)
	ctx := context.Background()

	first := l.Begin("v1", "")
	second := l.Begin("v2", "")
	assert.True(t, l.Loading())

	require.NoError(t, l.Complete(ctx, first))
	assert.Empty(t, f.calls, "superseded ticket never fetches")
	assert.True(t, l.Loading())

	require.NoError(t, l.Complete(ctx, second))
	assert.Equal(t, []string{"v2"}, f.calls)
	assert.True(t, l.Snapshot().Has("two"))
	assert.False(t, l.Loading())
}
