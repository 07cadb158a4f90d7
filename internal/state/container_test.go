package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/septivank/asset-tracker/internal/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedFetcher returns its n-th result once gates[n] is closed
type gatedFetcher struct {
	started chan int
	gates   []chan struct{}
	results [][]string
	calls   int
}

func newGatedFetcher(results ...[]string) *gatedFetcher {
	f := &gatedFetcher{started: make(chan int, len(results)), results: results}
	for range results {
		f.gates = append(f.gates, make(chan struct{}))
	}
	return f
}

func (f *gatedFetcher) fetch(ctx context.Context, _ scope.Caller) ([]string, error) {
	n := f.calls
	f.calls++
	f.started <- n
	<-f.gates[n]
	return f.results[n], nil
}

func TestContainer_LatestStartedWins(t *testing.T) {
	f := newGatedFetcher([]string{"old"}, []string{"new"})
	c := NewContainer[string]("assets", f.fetch, nil)
	caller := scope.Caller{Role: scope.Admin{}}

	first := make(chan Snapshot[string], 1)
	go func() {
		snap, _ := c.Refresh(context.Background(), caller)
		first <- snap
	}()
	require.Equal(t, 0, <-f.started)

	second := make(chan Snapshot[string], 1)
	go func() {
		snap, _ := c.Refresh(context.Background(), caller)
		second <- snap
	}()
	require.Equal(t, 1, <-f.started)

	// the later fetch completes first
	close(f.gates[1])
	assert.Equal(t, []string{"new"}, (<-second).Items)

	// the earlier fetch completes last and is discarded
	close(f.gates[0])
	assert.Equal(t, []string{"new"}, (<-first).Items)

	snap, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, []string{"new"}, snap.Items)
	assert.Equal(t, uint64(2), snap.Ticket)
}

func TestContainer_FailedRefreshKeepsContents(t *testing.T) {
	fail := false
	c := NewContainer("clients", func(ctx context.Context, _ scope.Caller) ([]string, error) {
		if fail {
			return nil, errors.New("backend unavailable")
		}
		return []string{"a"}, nil
	}, nil)

	_, err := c.Refresh(context.Background(), scope.Caller{})
	require.NoError(t, err)

	fail = true
	_, err = c.Refresh(context.Background(), scope.Caller{})
	assert.Error(t, err)
	assert.Equal(t, []string{"a"}, c.Items())
}

func TestContainer_InvalidateDiscardsInFlight(t *testing.T) {
	f := newGatedFetcher([]string{"stale"})
	c := NewContainer[string]("projects", f.fetch, nil)

	done := make(chan struct{})
	go func() {
		_, _ = c.Refresh(context.Background(), scope.Caller{})
		close(done)
	}()
	<-f.started

	c.Invalidate()
	close(f.gates[0])
	<-done

	_, ok := c.Get()
	assert.False(t, ok)
	assert.Empty(t, c.Items())
}

func TestContainer_Restore(t *testing.T) {
	c := NewContainer("devices", func(ctx context.Context, _ scope.Caller) ([]string, error) {
		return []string{"fresh"}, nil
	}, nil)

	assert.True(t, c.Restore(Snapshot[string]{Items: []string{"mirrored"}, Ticket: 7}))
	snap, ok := c.Get()
	require.True(t, ok)
	assert.Equal(t, "devices", snap.Kind)
	assert.Equal(t, []string{"mirrored"}, snap.Items)

	_, err := c.Refresh(context.Background(), scope.Caller{})
	require.NoError(t, err)
	assert.False(t, c.Restore(Snapshot[string]{Items: []string{"older"}}))
	assert.Equal(t, []string{"fresh"}, c.Items())
}

func TestContainer_SavedHook(t *testing.T) {
	var saved []Snapshot[int]
	c := NewContainer("clients", func(ctx context.Context, _ scope.Caller) ([]int, error) {
		return nil, nil
	}, func(ctx context.Context, snap Snapshot[int]) {
		saved = append(saved, snap)
	})

	snap, err := c.Refresh(context.Background(), scope.Caller{})
	require.NoError(t, err)
	assert.NotNil(t, snap.Items)
	require.Len(t, saved, 1)
	assert.Equal(t, uint64(1), saved[0].Ticket)
}

func TestContainer_InvalidateWaitsForSave(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	c := NewContainer("assets", func(ctx context.Context, _ scope.Caller) ([]string, error) {
		return []string{"before"}, nil
	}, func(ctx context.Context, snap Snapshot[string]) {
		close(entered)
		<-release
	})

	refreshed := make(chan struct{})
	go func() {
		_, _ = c.Refresh(context.Background(), scope.Caller{})
		close(refreshed)
	}()
	<-entered

	invalidated := make(chan struct{})
	go func() {
		c.Invalidate()
		close(invalidated)
	}()

	select {
	case <-invalidated:
		t.Fatal("Invalidate returned while a save was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-refreshed
	<-invalidated

	_, ok := c.Get()
	assert.False(t, ok)
}

func TestContainer_NoSaveOfInvalidatedFetch(t *testing.T) {
	f := newGatedFetcher([]string{"stale"})
	saves := 0
	c := NewContainer[string]("projects", f.fetch, func(ctx context.Context, snap Snapshot[string]) {
		saves++
	})

	done := make(chan struct{})
	go func() {
		_, _ = c.Refresh(context.Background(), scope.Caller{})
		close(done)
	}()
	<-f.started

	c.Invalidate()
	close(f.gates[0])
	<-done

	assert.Equal(t, 0, saves)
}

func TestContainer_RestoreRejectsSnapshotsBeforeInvalidation(t *testing.T) {
	c := NewContainer("clients", func(ctx context.Context, _ scope.Caller) ([]string, error) {
		return []string{"fresh"}, nil
	}, nil)

	before := time.Now().UTC().Add(-time.Minute)
	c.Invalidate()

	assert.False(t, c.Restore(Snapshot[string]{Items: []string{"old"}, FetchedAt: before}))
	_, ok := c.Get()
	assert.False(t, ok)

	assert.True(t, c.Restore(Snapshot[string]{Items: []string{"new"}, FetchedAt: time.Now().UTC().Add(time.Minute)}))
	assert.Equal(t, []string{"new"}, c.Items())
}
