package memory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndRecallInteractions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveInteraction(ctx, "patrol", "what do you see", "a hallway"))
	require.NoError(t, s.SaveInteraction(ctx, "patrol", "keep going", "moving on"))
	require.NoError(t, s.SaveInteraction(ctx, "idle", "status", "all quiet"))

	got, err := s.RecentInteractions(ctx, "patrol", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, in := range got {
		assert.Equal(t, "patrol", in.Mode)
	}

	got, err = s.RecentInteractions(ctx, "patrol", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRememberLocationUpserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RememberLocation(ctx, "dock", "charging station", "patrol"))
	require.NoError(t, s.RememberLocation(ctx, "dock", "charging station, east wall", "patrol"))
	require.NoError(t, s.RememberLocation(ctx, "kitchen", "", "idle"))

	locs, err := s.Locations(ctx)
	require.NoError(t, err)
	require.Len(t, locs, 2)

	byName := map[string]Location{}
	for _, l := range locs {
		byName[l.Name] = l
	}
	assert.Equal(t, "charging station, east wall", byName["dock"].Detail)
	assert.Equal(t, "idle", byName["kitchen"].Mode)
}
