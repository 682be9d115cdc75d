package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// FetchKey identifies one in-flight fetch slot. Requests for the same tuple
// supersede each other; requests for different tuples interleave freely.
type FetchKey struct {
	DatasourceID string
	WidgetID     string
	Field        string
}

type fetchEntry struct {
	token  string
	cancel context.CancelFunc
}

// FetchRegistry enforces last-request-wins ordering for cancellable fetches.
// Beginning a fetch cancels any previous fetch for the same key and issues a
// token; a result is applied only if its token is still current when it
// arrives, so a superseded request's late response is always discarded.
type FetchRegistry struct {
	mu       sync.Mutex
	inflight map[FetchKey]*fetchEntry
}

// NewFetchRegistry creates an empty registry.
func NewFetchRegistry() *FetchRegistry {
	return &FetchRegistry{inflight: make(map[FetchKey]*fetchEntry)}
}

// Begin registers a new fetch for key, cancelling any previous one. The
// returned context is cancelled when the fetch is superseded; the token is
// presented to Accept when the result arrives.
func (r *FetchRegistry) Begin(ctx context.Context, key FetchKey) (context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.inflight[key]; ok {
		prev.cancel()
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	token := uuid.NewString()
	r.inflight[key] = &fetchEntry{token: token, cancel: cancel}
	return fetchCtx, token
}

// Accept reports whether the fetch identified by token is still the current
// one for key, and retires it if so. A fetch superseded between Begin and
// Accept is rejected even though its response arrived.
func (r *FetchRegistry) Accept(key FetchKey, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.inflight[key]
	if !ok || entry.token != token {
		return false
	}
	entry.cancel()
	delete(r.inflight, key)
	return true
}

// CancelAll cancels every in-flight fetch, e.g. when the widget is deselected.
func (r *FetchRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.inflight {
		entry.cancel()
		delete(r.inflight, key)
	}
}
