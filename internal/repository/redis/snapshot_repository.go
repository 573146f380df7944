package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"flowsync/internal/domain"

	"github.com/go-redis/redis/v8"
)

// SnapshotRepository is a Redis implementation of domain.SnapshotRepository.
// Each snapshot is a JSON string key; a set indexes the stored ids.
type SnapshotRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewSnapshotRepository creates a Redis snapshot repository
func NewSnapshotRepository(client *redis.Client, keyPrefix string) *SnapshotRepository {
	return &SnapshotRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Connect creates a client for addr and verifies the server answers
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (r *SnapshotRepository) snapshotKey(id string) string {
	return fmt.Sprintf("%s:snapshot:%s", r.keyPrefix, id)
}

func (r *SnapshotRepository) indexKey() string {
	return fmt.Sprintf("%s:snapshots", r.keyPrefix)
}

// Save stores a snapshot, replacing any snapshot with the same ID
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.snapshotKey(snapshot.ID), data, 0)
		pipe.SAdd(ctx, r.indexKey(), snapshot.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by ID
func (r *SnapshotRepository) Load(ctx context.Context, id string) (*domain.Snapshot, error) {
	data, err := r.client.Get(ctx, r.snapshotKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return &snapshot, nil
}

// List returns all snapshots, oldest first
func (r *SnapshotRepository) List(ctx context.Context) ([]*domain.Snapshot, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot ids: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Snapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.snapshotKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	snapshots := make([]*domain.Snapshot, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// index entry without a value
			continue
		}
		var snapshot domain.Snapshot
		if err := json.Unmarshal([]byte(s), &snapshot); err != nil {
			return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
		}
		snapshots = append(snapshots, &snapshot)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// Delete deletes a snapshot
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.snapshotKey(id))
		pipe.SRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}

// Close closes the Redis client
func (r *SnapshotRepository) Close() error {
	return r.client.Close()
}
