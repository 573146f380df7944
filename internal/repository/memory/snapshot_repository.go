package memory

import (
	"context"
	"sort"
	"sync"

	"flowsync/internal/domain"
)

// SnapshotRepository is an in-memory implementation of domain.SnapshotRepository
type SnapshotRepository struct {
	snapshots map[string]*domain.Snapshot
	mu        sync.RWMutex
}

// NewSnapshotRepository creates a new in-memory snapshot repository
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{
		snapshots: make(map[string]*domain.Snapshot),
	}
}

// Save stores a snapshot, replacing any snapshot with the same ID
func (r *SnapshotRepository) Save(_ context.Context, snapshot *domain.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshots[snapshot.ID] = clone(snapshot)
	return nil
}

// Load retrieves a snapshot by ID
func (r *SnapshotRepository) Load(_ context.Context, id string) (*domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, exists := r.snapshots[id]
	if !exists {
		return nil, domain.ErrSnapshotNotFound
	}

	return clone(snapshot), nil
}

// List returns all snapshots, oldest first
func (r *SnapshotRepository) List(_ context.Context) ([]*domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshots := make([]*domain.Snapshot, 0, len(r.snapshots))
	for _, snapshot := range r.snapshots {
		snapshots = append(snapshots, clone(snapshot))
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})

	return snapshots, nil
}

// Delete deletes a snapshot
func (r *SnapshotRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.snapshots[id]; !exists {
		return domain.ErrSnapshotNotFound
	}

	delete(r.snapshots, id)
	return nil
}

// Close is a no-op for the in-memory repository
func (r *SnapshotRepository) Close() error {
	return nil
}

func clone(s *domain.Snapshot) *domain.Snapshot {
	out := *s
	out.Data = append([]byte(nil), s.Data...)
	return &out
}
