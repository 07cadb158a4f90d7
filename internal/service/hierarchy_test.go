package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/repository"
	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/septivank/asset-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHierarchy_ClientGrantWidensToDescendants(t *testing.T) {
	env := setup(t)
	f := env.fixture
	ctx := context.Background()
	caller := callerWith(scope.ProjectUser{ProjectID: f.Project3})
	env.store.Insert(store.TableUserClientAccess, db.ClientMembership{UserID: caller.UserID, ClientID: f.Client1, IsActive: true})

	clients, err := env.hierarchy.Clients(ctx, caller, nil)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, f.Client1, clients[0].ID)

	endCustomers, err := env.hierarchy.EndCustomers(ctx, caller, repository.Filter{})
	require.NoError(t, err)
	require.Len(t, endCustomers, 1)
	assert.Equal(t, f.EndCustomer1, endCustomers[0].ID)

	projects, err := env.hierarchy.Projects(ctx, caller, repository.Filter{})
	require.NoError(t, err)
	assert.Len(t, projects, 3)

	assets, err := env.hierarchy.Assets(ctx, caller, repository.AssetFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{f.Asset1, f.Asset2, f.Asset3, f.Asset4}, rowIDs(assets))
}

func TestHierarchy_RequestedFiltersIntersectVisibility(t *testing.T) {
	env := setup(t)
	f := env.fixture
	ctx := context.Background()
	caller := callerWith(scope.EndCustomerAdmin{EndCustomerID: f.EndCustomer1})

	clients, err := env.hierarchy.Clients(ctx, caller, []uuid.UUID{f.Client1})
	require.NoError(t, err)
	assert.Empty(t, clients, "an end customer binding does not grant its client")

	projects, err := env.hierarchy.Projects(ctx, caller, repository.Filter{IDs: []uuid.UUID{f.Project1, f.Project3}})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, f.Project1, projects[0].ID)

	projects, err = env.hierarchy.Projects(ctx, caller, repository.Filter{ParentIDs: []uuid.UUID{f.EndCustomer2}})
	require.NoError(t, err)
	assert.Empty(t, projects)

	assets, err := env.hierarchy.Assets(ctx, caller, repository.AssetFilter{Filter: repository.Filter{ParentIDs: []uuid.UUID{f.Project2}}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.Asset2}, rowIDs(assets))

	assets, err = env.hierarchy.Assets(ctx, caller, repository.AssetFilter{
		Filter:    repository.Filter{IDs: []uuid.UUID{f.Asset1, f.Asset3}},
		ClientIDs: []uuid.UUID{f.Client2},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.Asset1}, rowIDs(assets))
}

func TestHierarchy_NoWidening(t *testing.T) {
	env := setupWithWidening(t, scope.WidenNone)
	f := env.fixture
	ctx := context.Background()
	caller := callerWith(scope.ClientAdmin{ClientID: f.Client1})

	clients, err := env.hierarchy.Clients(ctx, caller, nil)
	require.NoError(t, err)
	assert.Len(t, clients, 1)

	endCustomers, err := env.hierarchy.EndCustomers(ctx, caller, repository.Filter{})
	require.NoError(t, err)
	assert.Empty(t, endCustomers)

	assets, err := env.hierarchy.Assets(ctx, caller, repository.AssetFilter{})
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func TestHierarchy_AdminUsesFiltersDirectly(t *testing.T) {
	env := setup(t)
	f := env.fixture

	endCustomers, err := env.hierarchy.EndCustomers(context.Background(), callerWith(scope.Admin{}),
		repository.Filter{ParentIDs: []uuid.UUID{f.Client2}})
	require.NoError(t, err)
	require.Len(t, endCustomers, 1)
	assert.Equal(t, f.EndCustomer2, endCustomers[0].ID)
}

func TestHierarchy_DeniedSeesNothing(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	caller := callerWith(scope.Denied{Declared: "end_customer_admin"})

	clients, err := env.hierarchy.Clients(ctx, caller, nil)
	require.NoError(t, err)
	assert.Empty(t, clients)

	assets, err := env.hierarchy.Assets(ctx, caller, repository.AssetFilter{})
	require.NoError(t, err)
	assert.Empty(t, assets)

	assert.Equal(t, 0, env.store.TotalCalls())
}

func TestHierarchy_MembershipFailurePropagates(t *testing.T) {
	env := setup(t)
	env.store.FailOn(store.TableUserEndCustAccess, errBackend)

	_, err := env.hierarchy.Projects(context.Background(), callerWith(scope.ProjectUser{ProjectID: env.fixture.Project1}), repository.Filter{})
	assert.ErrorIs(t, err, errBackend)
}
