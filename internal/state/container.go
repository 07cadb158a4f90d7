// Package state keeps the latest fetch result per entity kind for each user.
// Containers are rebuilt wholesale on every fetch, never patched.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/septivank/asset-tracker/internal/scope"
)

// Fetcher loads the full contents of a container for a caller
type Fetcher[T any] func(ctx context.Context, caller scope.Caller) ([]T, error)

// Snapshot is the contents of a container at one fetch
type Snapshot[T any] struct {
	Kind      string    `json:"kind"`
	Items     []T       `json:"items"`
	Ticket    uint64    `json:"ticket"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Container holds the latest result of a fetch.
//
// Every Refresh takes a ticket when it starts. A completed fetch is applied
// only if no fetch with a later ticket has been applied, so overlapping
// refreshes settle on the latest-started one regardless of completion order.
//
// The saved hook runs under saveMu and only while the applied snapshot is
// still current. Invalidate takes saveMu too, so once it returns no snapshot
// from before the invalidation can be saved.
type Container[T any] struct {
	kind  string
	fetch Fetcher[T]
	saved func(ctx context.Context, snap Snapshot[T])

	saveMu sync.Mutex

	mu          sync.Mutex
	ticket      uint64
	applied     uint64
	snap        Snapshot[T]
	loaded      bool
	invalidated time.Time
}

// NewContainer creates an empty container. saved, when set, is called with
// every applied snapshot.
func NewContainer[T any](kind string, fetch Fetcher[T], saved func(ctx context.Context, snap Snapshot[T])) *Container[T] {
	return &Container[T]{kind: kind, fetch: fetch, saved: saved}
}

// Kind returns the entity kind held
func (c *Container[T]) Kind() string {
	return c.kind
}

// Refresh fetches and applies a new snapshot. It returns the container's
// snapshot afterwards, which is a newer one when this fetch was overtaken.
// A failed fetch leaves the container unchanged.
func (c *Container[T]) Refresh(ctx context.Context, caller scope.Caller) (Snapshot[T], error) {
	c.mu.Lock()
	c.ticket++
	ticket := c.ticket
	c.mu.Unlock()

	items, err := c.fetch(ctx, caller)
	if err != nil {
		return Snapshot[T]{}, err
	}
	if items == nil {
		items = []T{}
	}

	c.mu.Lock()
	if ticket <= c.applied {
		current := c.snap
		c.mu.Unlock()
		return current, nil
	}
	c.applied = ticket
	c.snap = Snapshot[T]{Kind: c.kind, Items: items, Ticket: ticket, FetchedAt: time.Now().UTC()}
	c.loaded = true
	snap := c.snap
	c.mu.Unlock()

	c.save(ctx, snap)
	return snap, nil
}

func (c *Container[T]) save(ctx context.Context, snap Snapshot[T]) {
	if c.saved == nil {
		return
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	current := c.loaded && c.applied == snap.Ticket
	c.mu.Unlock()
	if !current {
		return
	}
	c.saved(ctx, snap)
}

// Get returns the current snapshot and whether one has been loaded
func (c *Container[T]) Get() (Snapshot[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, c.loaded
}

// Items returns the current items, empty when nothing is loaded
func (c *Container[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return []T{}
	}
	return c.snap.Items
}

// Restore loads a snapshot obtained elsewhere into an empty container. It
// is ignored once the container holds a fetch of its own, and for snapshots
// fetched before the last invalidation.
func (c *Container[T]) Restore(snap Snapshot[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return false
	}
	if !c.invalidated.IsZero() && !snap.FetchedAt.After(c.invalidated) {
		return false
	}
	snap.Kind = c.kind
	c.snap = snap
	c.loaded = true
	return true
}

// Invalidate empties the container and discards fetches still in flight.
// It waits for a save in progress to finish.
func (c *Container[T]) Invalidate() {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied = c.ticket
	c.snap = Snapshot[T]{}
	c.loaded = false
	c.invalidated = time.Now().UTC()
}
