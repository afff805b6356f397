package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"blogwatch/models"
	"blogwatch/monitor"
	"blogwatch/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "blogwatch.db")
	require.NoError(t, store.Migrate(dbPath))

	st, err := store.NewStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestLoadEmptyDatabase(t *testing.T) {
	st := newTestStore(t)

	state, err := st.Load(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, state)
}

func TestFlushAndLoadRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	state := monitor.State{
		"p1": {Trending: true},
		"p2": {Trending: false},
	}
	require.NoError(t, st.Flush(ctx, state))

	loaded, err := st.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestFlushUpdatesExistingEntries(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Flush(ctx, monitor.State{"p1": {Trending: false}}))
	require.NoError(t, st.Flush(ctx, monitor.State{"p1": {Trending: true}}))

	loaded, err := st.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, models.Fingerprint{Trending: true}, loaded["p1"])
	assert.Len(t, loaded, 1)
}

func TestFlushNeverDeletes(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Flush(ctx, monitor.State{"p1": {Trending: false}}))
	// A later cycle that no longer sees p1 still keeps it tracked
	require.NoError(t, st.Flush(ctx, monitor.State{"p2": {Trending: true}}))

	loaded, err := st.Load(ctx)
	assert.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestTracked(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.Flush(ctx, monitor.State{
		"p1": {Trending: true},
		"p2": {Trending: false},
	}))

	tracked, err := st.Tracked(ctx, 10)
	assert.NoError(t, err)
	assert.Len(t, tracked, 2)

	limited, err := st.Tracked(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, limited, 1)
}
