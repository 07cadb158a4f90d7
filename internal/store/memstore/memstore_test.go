package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/septivank/asset-tracker/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reading struct {
	ID        int64     `json:"id"`
	DeviceID  int64     `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
}

func TestSelect_OrderAndLimit(t *testing.T) {
	s := New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Insert(store.TableDeviceData,
		reading{ID: 1, DeviceID: 1, Timestamp: t0},
		reading{ID: 2, DeviceID: 1, Timestamp: t0.Add(2 * time.Hour)},
		reading{ID: 3, DeviceID: 1, Timestamp: t0.Add(time.Hour)},
	)

	rows, err := store.List[reading](context.Background(), s,
		store.From(store.TableDeviceData).Eq("device_id", int64(1)).OrderBy("timestamp", false).Limit(2))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ID)
	assert.Equal(t, int64(3), rows[1].ID)
	assert.Equal(t, 1, s.Calls(store.TableDeviceData))
}

func TestSelect_RangeOnTimestamps(t *testing.T) {
	s := New()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Insert(store.TableDeviceData,
		reading{ID: 1, DeviceID: 1, Timestamp: t0},
		reading{ID: 2, DeviceID: 1, Timestamp: t0.Add(time.Hour)},
	)

	rows, err := store.List[reading](context.Background(), s,
		store.From(store.TableDeviceData).Gte("timestamp", t0.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].ID)
}

func TestSelect_RelationPath(t *testing.T) {
	s := New()
	s.Insert(store.TableEndCustomers, map[string]any{"id": "ec1", "client_id": "c1"})
	s.Insert(store.TableProjects, map[string]any{"id": "p1", "end_customer_id": "ec1"})
	s.Insert(store.TableAssets,
		map[string]any{"id": "a1", "current_project_id": "p1"},
		map[string]any{"id": "a2", "current_project_id": nil},
	)

	rows, err := store.List[map[string]any](context.Background(), s,
		store.From(store.TableAssets).Eq("project.end_customer.client_id", "c1"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a1", rows[0]["id"])
}

func TestSelect_ILikeEscapes(t *testing.T) {
	s := New()
	s.Insert(store.TableAssets,
		map[string]any{"id": "a1", "name": "Crane 50% off"},
		map[string]any{"id": "a2", "name": "Crane 500"},
	)

	rows, err := store.List[map[string]any](context.Background(), s,
		store.From(store.TableAssets).ILike("name", store.Contains("50%")))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a1", rows[0]["id"])
}

func TestSelect_SingleAndFailure(t *testing.T) {
	s := New()
	_, err := s.Select(context.Background(), store.From(store.TableUsers).Eq("id", "x").Single())
	assert.ErrorIs(t, err, store.ErrNotFound)

	boom := errors.New("boom")
	s.FailOn(store.TableUsers, boom)
	_, err = s.Select(context.Background(), store.From(store.TableUsers))
	assert.ErrorIs(t, err, boom)
}

func TestUpsert_MergesByID(t *testing.T) {
	s := New()
	s.Insert(store.TableUsers, map[string]any{"id": "u1", "first_name": "A", "role": "admin"})

	require.NoError(t, s.Upsert(context.Background(), store.TableUsers, map[string]any{"id": "u1", "first_name": "B"}))

	got, err := store.One[map[string]any](context.Background(), s, store.From(store.TableUsers).Eq("id", "u1"))
	require.NoError(t, err)
	assert.Equal(t, "B", (*got)["first_name"])
	assert.Equal(t, "admin", (*got)["role"])
}
