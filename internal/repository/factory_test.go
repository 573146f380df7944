package repository

import (
	"context"
	"testing"

	"flowsync/internal/config"
	"flowsync/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSnapshotRepositoryMemory(t *testing.T) {
	cfg := config.Default()

	repo, err := NewSnapshotRepository(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer repo.Close()

	assert.IsType(t, &memory.SnapshotRepository{}, repo)
}

func TestNewSnapshotRepositoryBadger(t *testing.T) {
	cfg := config.Default()
	cfg.StoreType = config.StoreBadger
	cfg.BadgerPath = t.TempDir()

	repo, err := NewSnapshotRepository(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, repo.Close())
}

func TestNewSnapshotRepositoryUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.StoreType = "sqlite"

	_, err := NewSnapshotRepository(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
