package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Mr-7mdan/Bayan-sub002/core/distinct"
	"github.com/Mr-7mdan/Bayan-sub002/core/pivot"
	"github.com/Mr-7mdan/Bayan-sub002/core/predicate"
	"github.com/Mr-7mdan/Bayan-sub002/core/queryspec"
	"github.com/asaidimu/go-events"
	"go.uber.org/zap"
)

// ErrSuperseded is returned when a fetch result arrives after a newer request
// for the same field has started; the result must not be applied.
var ErrSuperseded = fmt.Errorf("request superseded by a newer one")

// Config tunes a session's asynchrony.
type Config struct {
	// Debounce is the quiet period before an expensive edit is compiled into
	// the durable spec. Intermediate states update only the working copy.
	Debounce time.Duration
}

// DefaultConfig returns the reference session configuration.
func DefaultConfig() *Config {
	return &Config{Debounce: 1500 * time.Millisecond}
}

// Session owns the editing state for one selected widget. The working
// assignments are mutated on every UI interaction; the compiled spec is the
// durable artifact and only advances when compilation succeeds. All state
// notifications flow over the typed event bus; the session's public surface is
// plain method calls.
type Session struct {
	widgetID     string
	datasourceID string
	widget       queryspec.Widget
	compiler     *queryspec.Compiler
	resolver     *distinct.Resolver
	config       *Config
	logger       *zap.Logger
	bus          *events.TypedEventBus[Event]
	fetches      *FetchRegistry
	now          func() time.Time

	mu         sync.Mutex
	working    pivot.Assignments
	spec       *queryspec.Spec
	kinds      map[string]predicate.FieldKind
	signatures map[string]string
	timer      *time.Timer
}

// NewSession starts an editing session for a widget. The resolver may be nil
// when no distinct-value picker is needed; initial carries the assignments
// rebuilt from the widget's persisted spec.
func NewSession(widgetID, datasourceID string, widget queryspec.Widget, compiler *queryspec.Compiler, resolver *distinct.Resolver, initial pivot.Assignments, config *Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config == nil {
		config = DefaultConfig()
	}
	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize session event bus: %w", err)
	}

	s := &Session{
		widgetID:     widgetID,
		datasourceID: datasourceID,
		widget:       widget,
		compiler:     compiler,
		resolver:     resolver,
		config:       config,
		logger:       logger,
		bus:          bus,
		fetches:      NewFetchRegistry(),
		now:          time.Now,
		working:      initial.Clone(),
		kinds:        make(map[string]predicate.FieldKind),
		signatures:   make(map[string]string),
	}
	s.recompileLocked()
	return s, nil
}

// Subscribe registers a callback for one session event type and returns its
// unsubscribe function.
func (s *Session) Subscribe(event EventType, cb EventCallback) func() {
	return s.bus.Subscribe(string(event), func(ctx context.Context, e Event) error {
		return cb(ctx, e)
	})
}

// Assignments returns a copy of the working assignments.
func (s *Session) Assignments() pivot.Assignments {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.Clone()
}

// Spec returns a copy of the last valid compiled spec, or nil before the
// first successful compile.
func (s *Session) Spec() *queryspec.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spec == nil {
		return nil
	}
	out := *s.spec
	return &out
}

// SetFieldKind records a field's classified kind for later rule compilation.
func (s *Session) SetFieldKind(field string, kind predicate.FieldKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds[field] = kind
}

// Apply applies a structural patch and recompiles immediately.
func (s *Session) Apply(patch pivot.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := pivot.Apply(s.working, patch)
	if err != nil {
		s.emit(Event{Type: EventCompileFailed, WidgetID: s.widgetID, Error: err.Error(), Timestamp: s.now()})
		return err
	}
	s.working = next
	s.stopTimerLocked()
	s.recompileLocked()
	return nil
}

// ApplyDebounced applies a patch to the working copy immediately but defers
// recompilation until the configured quiet period elapses, coalescing bursts
// of expensive edits into one compile.
func (s *Session) ApplyDebounced(patch pivot.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := pivot.Apply(s.working, patch)
	if err != nil {
		return err
	}
	s.working = next

	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.config.Debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.timer = nil
		s.recompileLocked()
	})
	return nil
}

// Flush compiles any pending debounced edits immediately.
func (s *Session) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return
	}
	s.stopTimerLocked()
	s.recompileLocked()
}

// ApplyFilterRule compiles one field's rule state into predicate keys on the
// current spec's where clause. An unchanged logical state is a no-op, keyed by
// the rule's signature, so recompiling the same rule twice cannot cause an
// update storm downstream.
func (s *Session) ApplyFilterRule(field string, rule predicate.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	signature := rule.Signature()
	if s.signatures[field] == signature {
		return nil
	}

	kind, ok := s.kinds[field]
	if !ok {
		kind = predicate.KindString
	}

	patch, err := predicate.Compile(field, kind, rule, s.now())
	if err != nil {
		s.emit(Event{Type: EventCompileFailed, WidgetID: s.widgetID, Field: field, Error: err.Error(), Timestamp: s.now()})
		return err
	}

	if s.spec == nil {
		s.recompileLocked()
	}
	where := make(map[string]any, len(s.spec.Where)+len(patch))
	for key, value := range s.spec.Where {
		where[key] = value
	}
	patch.Merge(where)
	if len(where) == 0 {
		where = nil
	}

	next := *s.spec
	next.Where = where
	s.spec = &next
	s.signatures[field] = signature
	s.emit(Event{Type: EventSpecCompiled, WidgetID: s.widgetID, Spec: s.specCopyLocked(), Timestamp: s.now()})
	return nil
}

// specCopyLocked returns a copy of the current spec. The caller holds s.mu.
func (s *Session) specCopyLocked() *queryspec.Spec {
	if s.spec == nil {
		return nil
	}
	out := *s.spec
	return &out
}

// ResolveDistinct fetches candidate values for a field's picker through the
// resolver's fallback chain. Starting a new fetch for the same field cancels
// and supersedes the previous one; a superseded fetch returns ErrSuperseded
// and its result is never published.
func (s *Session) ResolveDistinct(ctx context.Context, field, formulaSrc string) ([]string, error) {
	if s.resolver == nil {
		return nil, fmt.Errorf("session has no distinct resolver")
	}

	key := FetchKey{DatasourceID: s.datasourceID, WidgetID: s.widgetID, Field: field}
	fetchCtx, token := s.fetches.Begin(ctx, key)

	s.mu.Lock()
	var where map[string]any
	if s.spec != nil {
		where = s.spec.Where
	}
	source := ""
	if s.spec != nil {
		source = s.spec.Source
	}
	s.mu.Unlock()

	values, err := s.resolver.Resolve(fetchCtx, distinct.Request{
		Source:       source,
		Field:        field,
		DatasourceID: s.datasourceID,
		Where:        where,
		Formula:      formulaSrc,
	})
	if err != nil {
		return nil, err
	}
	if !s.fetches.Accept(key, token) {
		return nil, ErrSuperseded
	}

	s.mu.Lock()
	s.emit(Event{Type: EventDistinctResolved, WidgetID: s.widgetID, Field: field, Values: values, Timestamp: s.now()})
	s.mu.Unlock()
	return values, nil
}

// Close tears the session down: pending debounces are dropped and in-flight
// fetches cancelled. The working assignments are discarded; the compiled spec
// persisted with the widget is the durable artifact.
func (s *Session) Close() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()
	s.fetches.CancelAll()
}

// recompileLocked compiles the working assignments into a new spec and
// publishes the result. The caller holds s.mu.
func (s *Session) recompileLocked() {
	spec, result := s.compiler.Compile(s.working, s.widget, s.spec)
	s.spec = &spec

	if len(result.RemovedFilters) > 0 {
		for _, field := range result.RemovedFilters {
			delete(s.signatures, field)
		}
		s.emit(Event{Type: EventFiltersRemoved, WidgetID: s.widgetID, RemovedFilters: result.RemovedFilters, Timestamp: s.now()})
	}
	s.emit(Event{Type: EventSpecCompiled, WidgetID: s.widgetID, Spec: s.specCopyLocked(), Timestamp: s.now()})
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) emit(event Event) {
	s.bus.Emit(string(event.Type), event)
}
