package session

import (
	"context"
	"testing"
	"time"

	"github.com/Mr-7mdan/Bayan-sub002/core/distinct"
	"github.com/Mr-7mdan/Bayan-sub002/core/pivot"
	"github.com/Mr-7mdan/Bayan-sub002/core/predicate"
	"github.com/Mr-7mdan/Bayan-sub002/core/queryspec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, initial pivot.Assignments, config *Config) *Session {
	t.Helper()
	compiler := queryspec.NewCompiler("sales.orders", nil, nil)
	s, err := NewSession("w-1", "ds-1", queryspec.Widget{Kind: queryspec.WidgetChart}, compiler, nil, initial, config, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func awaitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
		return Event{}
	}
}

func TestNewSession_CompilesInitialSpec(t *testing.T) {
	initial := pivot.Assignments{
		X:      pivot.StringOrList{"order_date"},
		Values: []pivot.ValueAssignment{{Field: "sales", Agg: pivot.AggSum}},
	}
	s := newTestSession(t, initial, nil)

	spec := s.Spec()
	require.NotNil(t, spec)
	assert.Equal(t, "sales.orders", spec.Source)
	require.Len(t, spec.Series, 1)
	assert.Equal(t, "sales", spec.Series[0].Y)
}

func TestSession_ApplyRecompilesImmediately(t *testing.T) {
	s := newTestSession(t, pivot.Assignments{}, nil)

	err := s.Apply(pivot.Patch{AddValue: &pivot.ValueAssignment{Field: "sales", Agg: pivot.AggSum}})
	require.NoError(t, err)

	spec := s.Spec()
	require.NotNil(t, spec)
	require.Len(t, spec.Series, 1)
}

func TestSession_ApplyInvalidPatchKeepsLastValidSpec(t *testing.T) {
	initial := pivot.Assignments{Values: []pivot.ValueAssignment{{Field: "sales", Agg: pivot.AggSum}}}
	s := newTestSession(t, initial, nil)
	before := s.Spec()

	idx := 9
	err := s.Apply(pivot.Patch{RemoveValue: &idx})
	assert.Error(t, err)
	assert.Equal(t, before, s.Spec())
}

func TestSession_DebounceCoalescesEdits(t *testing.T) {
	s := newTestSession(t, pivot.Assignments{}, &Config{Debounce: 40 * time.Millisecond})

	require.NoError(t, s.ApplyDebounced(pivot.Patch{AddValue: &pivot.ValueAssignment{Field: "sales", Agg: pivot.AggSum}}))
	require.NoError(t, s.ApplyDebounced(pivot.Patch{AddValue: &pivot.ValueAssignment{Field: "orders", Agg: pivot.AggCount}}))

	// The working copy has both edits immediately; the spec does not yet.
	assert.Len(t, s.Assignments().Values, 2)
	assert.Empty(t, s.Spec().Series)

	assert.Eventually(t, func() bool {
		return len(s.Spec().Series) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_FlushCompilesPendingEdits(t *testing.T) {
	s := newTestSession(t, pivot.Assignments{}, &Config{Debounce: time.Hour})

	require.NoError(t, s.ApplyDebounced(pivot.Patch{AddValue: &pivot.ValueAssignment{Field: "sales", Agg: pivot.AggSum}}))
	assert.Empty(t, s.Spec().Series)

	s.Flush()
	assert.Len(t, s.Spec().Series, 1)
}

func TestSession_ApplyFilterRule(t *testing.T) {
	initial := pivot.Assignments{Filters: []string{"region"}}
	s := newTestSession(t, initial, nil)
	s.SetFieldKind("region", predicate.KindString)

	rule := predicate.Rule{Manual: []any{"west", "east"}}
	require.NoError(t, s.ApplyFilterRule("region", rule))

	spec := s.Spec()
	assert.Equal(t, []any{"west", "east"}, spec.Where["region"])

	// Recompiling the identical logical state is a no-op.
	require.NoError(t, s.ApplyFilterRule("region", rule))
	assert.Equal(t, spec, s.Spec())
}

func TestSession_HidingFilterPrunesWhereAndNotifies(t *testing.T) {
	initial := pivot.Assignments{Filters: []string{"region"}}
	s := newTestSession(t, initial, nil)

	removed := make(chan Event, 1)
	unsubscribe := s.Subscribe(EventFiltersRemoved, func(ctx context.Context, e Event) error {
		removed <- e
		return nil
	})
	defer unsubscribe()

	require.NoError(t, s.ApplyFilterRule("region", predicate.Rule{Manual: []any{"west"}}))
	require.NotEmpty(t, s.Spec().Where)

	field := "region"
	require.NoError(t, s.Apply(pivot.Patch{HideFilter: &field}))

	assert.Empty(t, s.Spec().Where)
	event := awaitEvent(t, removed)
	assert.Equal(t, []string{"region"}, event.RemovedFilters)
}

func TestSession_SpecCompiledEvents(t *testing.T) {
	s := newTestSession(t, pivot.Assignments{}, nil)

	compiled := make(chan Event, 4)
	unsubscribe := s.Subscribe(EventSpecCompiled, func(ctx context.Context, e Event) error {
		compiled <- e
		return nil
	})
	defer unsubscribe()

	require.NoError(t, s.Apply(pivot.Patch{AddValue: &pivot.ValueAssignment{Field: "sales", Agg: pivot.AggSum}}))

	event := awaitEvent(t, compiled)
	assert.Equal(t, "w-1", event.WidgetID)
	require.NotNil(t, event.Spec)
	assert.Len(t, event.Spec.Series, 1)
}

type staticDistinctClient struct {
	values []any
}

func (c staticDistinctClient) Distinct(ctx context.Context, req distinct.DistinctRequest) (distinct.DistinctResponse, error) {
	return distinct.DistinctResponse{Values: c.values}, nil
}

func TestSession_ResolveDistinct(t *testing.T) {
	compiler := queryspec.NewCompiler("sales.orders", nil, nil)
	resolver := distinct.NewResolver(staticDistinctClient{values: []any{"west", "east"}}, nil, nil, nil, nil, nil)
	s, err := NewSession("w-1", "ds-1", queryspec.Widget{Kind: queryspec.WidgetChart}, compiler, resolver, pivot.Assignments{}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	values, err := s.ResolveDistinct(context.Background(), "region", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"east", "west"}, values)
}

func TestSession_ResolveDistinctWithoutResolver(t *testing.T) {
	s := newTestSession(t, pivot.Assignments{}, nil)
	_, err := s.ResolveDistinct(context.Background(), "region", "")
	assert.Error(t, err)
}
