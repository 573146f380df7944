package badger

import (
	"context"
	"os"
	"testing"
	"time"

	"flowsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupRepository creates a temporary on-disk repository for testing
func setupRepository(t *testing.T) (*SnapshotRepository, string, func()) {
	tempDir, err := os.MkdirTemp("", "flowsync-badger-*")
	require.NoError(t, err, "Failed to create temporary directory")

	repo, err := NewSnapshotRepository(zap.NewNop(), WithPath(tempDir), WithGCInterval(0))
	require.NoError(t, err, "Failed to open repository")

	cleanup := func() {
		os.RemoveAll(tempDir)
	}
	return repo, tempDir, cleanup
}

func TestSnapshotRepositoryInMemory(t *testing.T) {
	ctx := context.Background()
	repo, err := NewSnapshotRepository(zap.NewNop(), WithInMemory(true))
	require.NoError(t, err, "Failed to open in-memory repository")
	defer repo.Close()

	created := time.Now().UTC().Truncate(time.Millisecond)
	snapshot := &domain.Snapshot{ID: "a-1", Replica: "a", Data: []byte(`{"mode":"snapshot"}`), Frontiers: "[1@x]", CreatedAt: created}

	_, err = repo.Load(ctx, snapshot.ID)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound, "Load before Save should miss")

	require.NoError(t, repo.Save(ctx, snapshot), "Save should not return an error")

	got, err := repo.Load(ctx, snapshot.ID)
	require.NoError(t, err, "Load should not return an error")
	assert.Equal(t, snapshot.Data, got.Data, "Data should match")
	assert.Equal(t, snapshot.Frontiers, got.Frontiers, "Frontiers should match")
	assert.True(t, created.Equal(got.CreatedAt), "CreatedAt should match")

	require.NoError(t, repo.Save(ctx, &domain.Snapshot{ID: "b-1", Replica: "b", CreatedAt: created.Add(time.Second)}))
	list, err := repo.List(ctx)
	require.NoError(t, err, "List should not return an error")
	require.Len(t, list, 2)
	assert.Equal(t, "a-1", list[0].ID)

	require.NoError(t, repo.Delete(ctx, "a-1"), "Delete should not return an error")
	assert.ErrorIs(t, repo.Delete(ctx, "a-1"), domain.ErrSnapshotNotFound, "second Delete should miss")
}

func TestSnapshotRepositoryPersists(t *testing.T) {
	ctx := context.Background()
	repo, dir, cleanup := setupRepository(t)
	defer cleanup()

	require.NoError(t, repo.Save(ctx, &domain.Snapshot{ID: "origin", Data: []byte("seed")}))
	require.NoError(t, repo.Close())

	reopened, err := NewSnapshotRepository(zap.NewNop(), WithPath(dir), WithGCInterval(0))
	require.NoError(t, err, "Failed to reopen repository")
	defer reopened.Close()

	got, err := reopened.Load(ctx, "origin")
	require.NoError(t, err, "Load after reopen should not return an error")
	assert.Equal(t, []byte("seed"), got.Data)
}
