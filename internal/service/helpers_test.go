package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/access"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/store/memstore"
	"github.com/septivank/asset-tracker/internal/telemetry"
	"go.uber.org/zap"
)

type testEnv struct {
	store     *memstore.Store
	fixture   memstore.Fixture
	repo      *repository.Repository
	assets    *AssetService
	hierarchy *HierarchyService
}

func setup(t *testing.T) testEnv {
	t.Helper()
	return setupWithWidening(t, scope.WidenDescendants)
}

func setupWithWidening(t *testing.T, widening scope.Widening) testEnv {
	t.Helper()
	s := memstore.New()
	f := memstore.Seed(s)
	repo := repository.NewRepository(s, 0)
	resolver := access.NewResolver(repo, repo, widening, zap.NewNop())

	assets := NewAssetService(repo, telemetry.NewClassifier(20, 0), 2, zap.NewNop())
	assets.now = func() time.Time { return f.T3.Add(time.Minute) }

	return testEnv{
		store:     s,
		fixture:   f,
		repo:      repo,
		assets:    assets,
		hierarchy: NewHierarchyService(repo, resolver),
	}
}

func callerWith(role scope.Role) scope.Caller {
	return scope.Caller{UserID: uuid.New(), Role: role, Token: "token"}
}

func assetIDs(views []AssetView) []uuid.UUID {
	ids := make([]uuid.UUID, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	return ids
}

func rowIDs(assets []db.Asset) []uuid.UUID {
	ids := make([]uuid.UUID, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	return ids
}

type published struct {
	routingKey string
	event      any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{routingKey: routingKey, event: event})
	return p.err
}

type fakeGate struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (g *fakeGate) Allow(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return false, g.err
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}

type fakeStorage struct {
	uploads map[string][]byte
	err     error
}

func (s *fakeStorage) Upload(ctx context.Context, path, contentType string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	if s.uploads == nil {
		s.uploads = map[string][]byte{}
	}
	s.uploads[path] = data
	return nil
}

func (s *fakeStorage) PublicURL(path string) string {
	return "https://cdn.example.com/avatars/" + path
}

type fakeInvalidator struct {
	users []uuid.UUID
	err   error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, userID uuid.UUID) error {
	f.users = append(f.users, userID)
	return f.err
}

var errBackend = errors.New("backend unavailable")
