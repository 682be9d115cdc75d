// Package session hosts the widget-editing session: the working copy of a
// widget's pivot assignments, the compile pipeline that keeps its query spec
// current, and the asynchrony around it (debounced recomputes, cancellable
// distinct-value fetches, and a typed in-process event bus replacing ambient
// UI events).
package session

import (
	"context"
	"time"

	"github.com/Mr-7mdan/Bayan-sub002/core/queryspec"
)

// EventType names a session lifecycle event.
type EventType string

// Session events.
const (
	EventSpecCompiled     EventType = "spec:compiled"
	EventCompileFailed    EventType = "spec:compile_failed"
	EventFiltersRemoved   EventType = "filters:removed"
	EventDistinctResolved EventType = "distinct:resolved"
)

// Event is the payload carried on the session bus. Fields are populated
// according to Type.
type Event struct {
	Type           EventType       `json:"type"`
	WidgetID       string          `json:"widgetId"`
	Spec           *queryspec.Spec `json:"spec,omitempty"`
	RemovedFilters []string        `json:"removedFilters,omitempty"`
	Field          string          `json:"field,omitempty"`
	Values         []string        `json:"values,omitempty"`
	Error          string          `json:"error,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// EventCallback handles one session event.
type EventCallback func(ctx context.Context, event Event) error
