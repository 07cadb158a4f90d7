package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/septivank/asset-tracker/internal/db"
	"github.com/septivank/asset-tracker/internal/store"
	"github.com/septivank/asset-tracker/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Repository, *memstore.Store, memstore.Fixture) {
	t.Helper()
	s := memstore.New()
	f := memstore.Seed(s)
	return NewRepository(s, 0), s, f
}

func assetIDs(assets []db.Asset) []uuid.UUID {
	ids := make([]uuid.UUID, len(assets))
	for i, a := range assets {
		ids[i] = a.ID
	}
	return ids
}

func TestEndCustomers_IDsTakePrecedence(t *testing.T) {
	repo, _, f := setup(t)
	ctx := context.Background()

	both, err := repo.EndCustomers(ctx, Filter{IDs: []uuid.UUID{f.EndCustomer2}, ParentIDs: []uuid.UUID{f.Client1}})
	require.NoError(t, err)
	idsOnly, err := repo.EndCustomers(ctx, Filter{IDs: []uuid.UUID{f.EndCustomer2}})
	require.NoError(t, err)

	assert.Equal(t, idsOnly, both)
	require.Len(t, both, 1)
	assert.Equal(t, f.EndCustomer2, both[0].ID)
}

func TestProjects_ByParent(t *testing.T) {
	repo, _, f := setup(t)

	projects, err := repo.Projects(context.Background(), Filter{ParentIDs: []uuid.UUID{f.EndCustomer1}})
	require.NoError(t, err)
	assert.Len(t, projects, 2)
	for _, p := range projects {
		assert.Equal(t, f.EndCustomer1, p.EndCustomerID)
	}
}

func TestAssets_FilterPrecedence(t *testing.T) {
	repo, _, f := setup(t)
	ctx := context.Background()

	all, err := repo.Assets(ctx, AssetFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4, "inactive assets are never returned")

	byProject, err := repo.Assets(ctx, AssetFilter{
		Filter:    Filter{ParentIDs: []uuid.UUID{f.Project1}},
		ClientIDs: []uuid.UUID{f.Client2},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.Asset1}, assetIDs(byProject))

	byClient, err := repo.Assets(ctx, AssetFilter{ClientIDs: []uuid.UUID{f.Client2}})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.Asset3}, assetIDs(byClient))

	byID, err := repo.Assets(ctx, AssetFilter{
		Filter:    Filter{IDs: []uuid.UUID{f.Asset4}, ParentIDs: []uuid.UUID{f.Project3}},
		ClientIDs: []uuid.UUID{f.Client2},
	})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.Asset4}, assetIDs(byID))
}

func TestFetchers_Idempotent(t *testing.T) {
	repo, _, f := setup(t)
	ctx := context.Background()

	first, err := repo.Projects(ctx, Filter{ParentIDs: []uuid.UUID{f.EndCustomer1, f.EndCustomer2}})
	require.NoError(t, err)
	second, err := repo.Projects(ctx, Filter{ParentIDs: []uuid.UUID{f.EndCustomer1, f.EndCustomer2}})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	c1, err := repo.Clients(ctx, nil)
	require.NoError(t, err)
	c2, err := repo.Clients(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
}

func TestEmptyDeviceSets_NoBackendCall(t *testing.T) {
	repo, s, _ := setup(t)
	ctx := context.Background()

	devices, err := repo.Devices(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, devices)

	readings, err := repo.LatestReadings(ctx, []int64{})
	require.NoError(t, err)
	assert.Empty(t, readings)

	assert.Equal(t, 0, s.TotalCalls())
}

func TestLatestReading(t *testing.T) {
	repo, _, f := setup(t)
	ctx := context.Background()

	latest, err := repo.LatestReading(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(13), latest.ID)
	assert.True(t, latest.Timestamp.Equal(f.T3))

	absent, err := repo.LatestReading(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestLatestReading_BackendFailurePropagates(t *testing.T) {
	repo, s, _ := setup(t)
	boom := errors.New("connection reset")
	s.FailOn(store.TableDeviceData, boom)

	_, err := repo.LatestReading(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestReadingHistory_BoundedAndAscending(t *testing.T) {
	repo, _, f := setup(t)

	history, err := repo.ReadingHistory(context.Background(), 1, f.T1, f.T2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(11), history[0].ID)
	assert.Equal(t, int64(12), history[1].ID)
}

func TestLatestReadings_CapAndOrder(t *testing.T) {
	s := memstore.New()
	memstore.Seed(s)
	repo := NewRepository(s, 2)

	readings, err := repo.LatestReadings(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, int64(13), readings[0].ID)
	assert.False(t, readings[0].Timestamp.Before(readings[1].Timestamp))
}

func TestUserProfile_NotFoundIsDistinct(t *testing.T) {
	repo, _, _ := setup(t)

	_, err := repo.UserProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateProfile_Upserts(t *testing.T) {
	repo, s, _ := setup(t)
	ctx := context.Background()
	id := uuid.New()
	s.Insert(store.TableUsers, db.User{ID: id, Email: "ops@example.com", Role: "admin", IsActive: true})

	first := "Ada"
	require.NoError(t, repo.UpdateProfile(ctx, db.ProfileRow{ID: id, FirstName: &first}))

	user, err := repo.UserProfile(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, user.FirstName)
	assert.Equal(t, "Ada", *user.FirstName)
	assert.Equal(t, "ops@example.com", user.Email)
}

func TestMemberships_OnlyActiveRowsOfUser(t *testing.T) {
	repo, s, f := setup(t)
	user := uuid.New()
	s.Insert(store.TableUserClientAccess,
		db.ClientMembership{UserID: user, ClientID: f.Client1, IsActive: true},
		db.ClientMembership{UserID: user, ClientID: f.Client2, IsActive: false},
		db.ClientMembership{UserID: uuid.New(), ClientID: f.Client2, IsActive: true},
	)

	rows, err := repo.ClientMemberships(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, f.Client1, rows[0].ClientID)
}
