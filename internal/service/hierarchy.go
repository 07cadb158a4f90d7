package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/access"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/store"
	"golang.org/x/sync/errgroup"
)

// HierarchyService lists the clients, end customers, projects and assets a
// caller's grants make visible. Requested filters keep the entity fetcher
// precedence: ids, then parent ids, then (assets only) client ids.
type HierarchyService struct {
	repo     *repository.Repository
	resolver *access.Resolver
}

// NewHierarchyService creates a new hierarchy service
func NewHierarchyService(repo *repository.Repository, resolver *access.Resolver) *HierarchyService {
	return &HierarchyService{repo: repo, resolver: resolver}
}

// Clients lists visible clients, optionally restricted to ids
func (s *HierarchyService) Clients(ctx context.Context, caller scope.Caller, ids []uuid.UUID) ([]db.Client, error) {
	ctx = store.WithBearer(ctx, caller.Token)
	v, err := s.resolver.Visibility(ctx, caller)
	if err != nil {
		return nil, err
	}
	if v.All {
		return s.repo.Clients(ctx, ids)
	}

	allowed := restrict(v.ClientIDs, ids)
	if len(allowed) == 0 {
		return []db.Client{}, nil
	}
	return s.repo.Clients(ctx, allowed)
}

// EndCustomers lists visible end customers
func (s *HierarchyService) EndCustomers(ctx context.Context, caller scope.Caller, f repository.Filter) ([]db.EndCustomer, error) {
	ctx = store.WithBearer(ctx, caller.Token)
	v, err := s.resolver.Visibility(ctx, caller)
	if err != nil {
		return nil, err
	}
	if v.All {
		return s.repo.EndCustomers(ctx, f)
	}

	allowed := restrict(v.EndCustomerIDs, f.IDs)
	if len(allowed) == 0 {
		return []db.EndCustomer{}, nil
	}
	rows, err := s.repo.EndCustomers(ctx, repository.Filter{IDs: allowed})
	if err != nil {
		return nil, err
	}
	if len(f.IDs) > 0 || len(f.ParentIDs) == 0 {
		return rows, nil
	}
	return keep(rows, func(ec db.EndCustomer) bool { return containsID(f.ParentIDs, ec.ClientID) }), nil
}

// Projects lists visible projects
func (s *HierarchyService) Projects(ctx context.Context, caller scope.Caller, f repository.Filter) ([]db.Project, error) {
	ctx = store.WithBearer(ctx, caller.Token)
	v, err := s.resolver.Visibility(ctx, caller)
	if err != nil {
		return nil, err
	}
	if v.All {
		return s.repo.Projects(ctx, f)
	}

	allowed := restrict(v.ProjectIDs, f.IDs)
	if len(allowed) == 0 {
		return []db.Project{}, nil
	}
	rows, err := s.repo.Projects(ctx, repository.Filter{IDs: allowed})
	if err != nil {
		return nil, err
	}
	if len(f.IDs) > 0 || len(f.ParentIDs) == 0 {
		return rows, nil
	}
	return keep(rows, func(p db.Project) bool { return containsID(f.ParentIDs, p.EndCustomerID) }), nil
}

// Assets lists visible assets: those of visible projects and, when grants
// widen to descendants, those owned by granted clients
func (s *HierarchyService) Assets(ctx context.Context, caller scope.Caller, f repository.AssetFilter) ([]db.Asset, error) {
	ctx = store.WithBearer(ctx, caller.Token)
	v, err := s.resolver.Visibility(ctx, caller)
	if err != nil {
		return nil, err
	}
	if v.All {
		return s.repo.Assets(ctx, f)
	}

	var byProject, byClient []db.Asset
	g, gctx := errgroup.WithContext(ctx)
	if len(v.ProjectIDs) > 0 {
		g.Go(func() error {
			var err error
			byProject, err = s.repo.Assets(gctx, repository.AssetFilter{Filter: repository.Filter{ParentIDs: v.ProjectIDs}})
			return err
		})
	}
	if len(v.ClientIDs) > 0 && s.resolver.Widening() == scope.WidenDescendants {
		g.Go(func() error {
			var err error
			byClient, err = s.repo.Assets(gctx, repository.AssetFilter{ClientIDs: v.ClientIDs})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{}
	visible := []db.Asset{}
	for _, a := range append(byProject, byClient...) {
		if !seen[a.ID] {
			seen[a.ID] = true
			visible = append(visible, a)
		}
	}

	switch {
	case len(f.IDs) > 0:
		return keep(visible, func(a db.Asset) bool { return containsID(f.IDs, a.ID) }), nil
	case len(f.ParentIDs) > 0:
		return keep(visible, func(a db.Asset) bool {
			return a.CurrentProjectID != nil && containsID(f.ParentIDs, *a.CurrentProjectID)
		}), nil
	case len(f.ClientIDs) > 0:
		return keep(visible, func(a db.Asset) bool { return containsID(f.ClientIDs, a.ClientID) }), nil
	}
	return visible, nil
}

// restrict intersects requested with visible; no request means all visible
func restrict(visible, requested []uuid.UUID) []uuid.UUID {
	if len(requested) == 0 {
		return visible
	}
	var out []uuid.UUID
	for _, id := range requested {
		if containsID(visible, id) {
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func keep[T any](rows []T, pred func(T) bool) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
