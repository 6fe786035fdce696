// Package source defines the pluggable activity-source adapter contract and
// the adapters shipped with the service.
package source

import (
	"context"
	"sync"
	"time"

	"github.com/epoch-ledger/internal/models"
)

// VersionUnknown is stamped on events when no adapter served the pull.
const VersionUnknown = "unknown"

// CollectParams bounds one pull from an external source.
type CollectParams struct {
	NodeID      string
	ScopeID     string
	SourceRef   string // adapter-specific target, e.g. "org/repo"
	Streams     []string
	Cursor      *string // nil means full backfill from the window start
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// CollectResult carries the pulled events and the cursor to persist.
// NextCursor must compare monotonically against any previously returned
// cursor for the same (source, stream, ref).
type CollectResult struct {
	Events     []models.ActivityEvent
	NextCursor *string
}

// Adapter pulls activity events from one external platform. Implementations
// must tolerate a nil cursor and must never mutate previously returned data.
type Adapter interface {
	Source() string
	Version() string
	Streams() []string
	Collect(ctx context.Context, params CollectParams) (*CollectResult, error)
}

// Registry holds the adapters available to the ingestion pipeline, keyed by
// source name.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter, replacing any previous adapter for the same
// source name.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Source()] = a
}

// Get returns the adapter for a source, or nil when none is registered.
func (r *Registry) Get(source string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[source]
}

// Sources lists the registered source names.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
