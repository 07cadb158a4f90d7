package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/service"
	"go.uber.org/zap"
)

// Container kinds of a workspace
const (
	KindClients      = "clients"
	KindEndCustomers = "end_customers"
	KindProjects     = "projects"
	KindAssets       = "assets"
	KindDevices      = "devices"
)

// Kinds lists every workspace container kind
var Kinds = []string{KindClients, KindEndCustomers, KindProjects, KindAssets, KindDevices}

// Workspace is the set of containers of one user
type Workspace struct {
	UserID       uuid.UUID
	Clients      *Container[db.Client]
	EndCustomers *Container[db.EndCustomer]
	Projects     *Container[db.Project]
	Assets       *Container[service.AssetView]
	Devices      *Container[service.DeviceWithAsset]

	active   int
	lastUsed time.Time
}

func (w *Workspace) invalidate() {
	w.Clients.Invalidate()
	w.EndCustomers.Invalidate()
	w.Projects.Invalidate()
	w.Assets.Invalidate()
	w.Devices.Invalidate()
}

// Registry keeps one workspace per user
type Registry struct {
	hierarchy *service.HierarchyService
	assets    *service.AssetService
	mirror    *SnapshotStore
	logger    *zap.Logger

	mu         sync.Mutex
	workspaces map[uuid.UUID]*Workspace
}

// NewRegistry creates a registry. mirror may be nil.
func NewRegistry(hierarchy *service.HierarchyService, assets *service.AssetService, mirror *SnapshotStore, logger *zap.Logger) *Registry {
	return &Registry{
		hierarchy:  hierarchy,
		assets:     assets,
		mirror:     mirror,
		logger:     logger,
		workspaces: map[uuid.UUID]*Workspace{},
	}
}

var _ service.Invalidator = (*Registry)(nil)

// For returns the workspace of a user, creating it on first use
func (r *Registry) For(userID uuid.UUID) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.lookup(userID)
	w.lastUsed = time.Now()
	return w
}

// acquire returns the workspace of a user and keeps it from being evicted
// until release is called
func (r *Registry) acquire(userID uuid.UUID) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.lookup(userID)
	w.active++
	return w
}

func (r *Registry) release(w *Workspace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.active--
	w.lastUsed = time.Now()
}

// Evict drops workspaces not used for idle that have no load in progress.
// Their snapshots stay in the mirror.
func (r *Registry) Evict(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, w := range r.workspaces {
		if w.active == 0 && w.lastUsed.Before(cutoff) {
			delete(r.workspaces, id)
			n++
		}
	}
	return n
}

// Len returns the number of workspaces held in memory
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

func (r *Registry) lookup(userID uuid.UUID) *Workspace {
	if w, ok := r.workspaces[userID]; ok {
		return w
	}

	w := &Workspace{
		UserID: userID,
		Clients: NewContainer(KindClients, func(ctx context.Context, c scope.Caller) ([]db.Client, error) {
			return r.hierarchy.Clients(ctx, c, nil)
		}, mirrorTo[db.Client](r, userID)),
		EndCustomers: NewContainer(KindEndCustomers, func(ctx context.Context, c scope.Caller) ([]db.EndCustomer, error) {
			return r.hierarchy.EndCustomers(ctx, c, repository.Filter{})
		}, mirrorTo[db.EndCustomer](r, userID)),
		Projects: NewContainer(KindProjects, func(ctx context.Context, c scope.Caller) ([]db.Project, error) {
			return r.hierarchy.Projects(ctx, c, repository.Filter{})
		}, mirrorTo[db.Project](r, userID)),
		Assets:  NewContainer(KindAssets, r.assets.AssetsWithDevices, mirrorTo[service.AssetView](r, userID)),
		Devices: NewContainer(KindDevices, r.assets.DevicesWithLatest, mirrorTo[service.DeviceWithAsset](r, userID)),
	}
	r.workspaces[userID] = w
	return w
}

// Invalidate empties a user's workspace and deletes its mirrored snapshots.
// Snapshot saves still running are waited for before the mirror is cleared.
func (r *Registry) Invalidate(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	w, ok := r.workspaces[userID]
	r.mu.Unlock()
	if ok {
		w.invalidate()
	}

	if r.mirror == nil {
		return nil
	}
	n, err := r.mirror.Invalidate(ctx, userID)
	if err != nil {
		return err
	}
	r.logger.Info("workspace invalidated",
		zap.String("user_id", userID.String()),
		zap.Int("snapshots_deleted", n),
	)
	return nil
}

// Load returns a container's snapshot for the caller: from memory, then
// from the mirror, then by fetching. refresh forces a fetch.
func Load[T any](ctx context.Context, r *Registry, c *Container[T], caller scope.Caller, refresh bool) (Snapshot[T], error) {
	if !refresh {
		if snap, ok := c.Get(); ok {
			return snap, nil
		}
		if r.mirror != nil {
			var snap Snapshot[T]
			found, err := r.mirror.Load(ctx, caller.UserID, c.Kind(), &snap)
			if err != nil {
				r.logger.Warn("snapshot mirror read failed", zap.String("kind", c.Kind()), zap.Error(err))
			}
			if found && c.Restore(snap) {
				if restored, ok := c.Get(); ok {
					return restored, nil
				}
			}
		}
	}
	return c.Refresh(ctx, caller)
}

// Snapshot loads the container of kind for the caller as a JSON-ready value
func (r *Registry) Snapshot(ctx context.Context, caller scope.Caller, kind string, refresh bool) (any, error) {
	w := r.acquire(caller.UserID)
	defer r.release(w)
	switch kind {
	case KindClients:
		return Load(ctx, r, w.Clients, caller, refresh)
	case KindEndCustomers:
		return Load(ctx, r, w.EndCustomers, caller, refresh)
	case KindProjects:
		return Load(ctx, r, w.Projects, caller, refresh)
	case KindAssets:
		return Load(ctx, r, w.Assets, caller, refresh)
	case KindDevices:
		return Load(ctx, r, w.Devices, caller, refresh)
	}
	return nil, fmt.Errorf("%w: unknown workspace kind %q", service.ErrInvalidInput, kind)
}

func mirrorTo[T any](r *Registry, userID uuid.UUID) func(ctx context.Context, snap Snapshot[T]) {
	if r.mirror == nil {
		return nil
	}
	return func(ctx context.Context, snap Snapshot[T]) {
		if err := r.mirror.Save(ctx, userID, snap.Kind, snap); err != nil {
			r.logger.Warn("snapshot mirror write failed", zap.String("kind", snap.Kind), zap.Error(err))
		}
	}
}
