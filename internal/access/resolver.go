// Package access resolves the grants a user holds and expands them into the
// set of hierarchy records the user may see.
package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Memberships reads the three membership tables
type Memberships interface {
	ClientMemberships(ctx context.Context, userID uuid.UUID) ([]db.ClientMembership, error)
	EndCustomerMemberships(ctx context.Context, userID uuid.UUID) ([]db.EndCustomerMembership, error)
	ProjectMemberships(ctx context.Context, userID uuid.UUID) ([]db.ProjectMembership, error)
}

// Hierarchy reads the levels grants refer to
type Hierarchy interface {
	EndCustomers(ctx context.Context, f repository.Filter) ([]db.EndCustomer, error)
	Projects(ctx context.Context, f repository.Filter) ([]db.Project, error)
}

// Resolver turns a user id into grants
type Resolver struct {
	members   Memberships
	hierarchy Hierarchy
	widening  scope.Widening
	logger    *zap.Logger
}

// NewResolver creates a new access resolver
func NewResolver(members Memberships, hierarchy Hierarchy, widening scope.Widening, logger *zap.Logger) *Resolver {
	if widening == "" {
		widening = scope.WidenDescendants
	}
	return &Resolver{members: members, hierarchy: hierarchy, widening: widening, logger: logger}
}

// Widening returns the configured widening policy
func (r *Resolver) Widening() scope.Widening {
	return r.widening
}

// Resolve reads the active grants of a user. The three membership reads run
// concurrently; the result lists client grants, then end-customer grants,
// then project grants. If any read fails, no grants are returned.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) ([]scope.Grant, error) {
	var (
		clients      []db.ClientMembership
		endCustomers []db.EndCustomerMembership
		projects     []db.ProjectMembership
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.members.ClientMemberships(gctx, userID)
		clients = rows
		return err
	})
	g.Go(func() error {
		rows, err := r.members.EndCustomerMemberships(gctx, userID)
		endCustomers = rows
		return err
	})
	g.Go(func() error {
		rows, err := r.members.ProjectMemberships(gctx, userID)
		projects = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to resolve access for user %s: %w", userID, err)
	}

	grants := make([]scope.Grant, 0, len(clients)+len(endCustomers)+len(projects))
	for _, row := range clients {
		grants = append(grants, scope.ClientGrant{UserID: userID, ClientID: row.ClientID})
	}
	for _, row := range endCustomers {
		grants = append(grants, scope.EndCustomerGrant{UserID: userID, EndCustomerID: row.EndCustomerID})
	}
	for _, row := range projects {
		grants = append(grants, scope.ProjectGrant{UserID: userID, ProjectID: row.ProjectID})
	}

	r.logger.Debug("access resolved",
		zap.String("user_id", userID.String()),
		zap.Int("client_grants", len(clients)),
		zap.Int("end_customer_grants", len(endCustomers)),
		zap.Int("project_grants", len(projects)),
	)
	return grants, nil
}
