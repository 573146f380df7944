package postgres

import (
	"context"
	"errors"
	"fmt"

	"flowsync/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	replica    TEXT NOT NULL,
	data       BYTEA NOT NULL,
	frontiers  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`

// SnapshotRepository is a PostgreSQL implementation of domain.SnapshotRepository
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository connects to dsn and makes sure the snapshots table exists
func NewSnapshotRepository(ctx context.Context, dsn string) (*SnapshotRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SnapshotRepository{pool: pool}, nil
}

// Save stores a snapshot, replacing any snapshot with the same ID
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO snapshots (id, replica, data, frontiers, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET replica = EXCLUDED.replica, data = EXCLUDED.data,
		    frontiers = EXCLUDED.frontiers, created_at = EXCLUDED.created_at`,
		snapshot.ID, snapshot.Replica, snapshot.Data, snapshot.Frontiers, snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by ID
func (r *SnapshotRepository) Load(ctx context.Context, id string) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := r.pool.QueryRow(ctx,
		`SELECT id, replica, data, frontiers, created_at FROM snapshots WHERE id = $1`, id).
		Scan(&s.ID, &s.Replica, &s.Data, &s.Frontiers, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &s, nil
}

// List returns all snapshots, oldest first
func (r *SnapshotRepository) List(ctx context.Context) ([]*domain.Snapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, replica, data, frontiers, created_at FROM snapshots ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*domain.Snapshot, 0)
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.Replica, &s.Data, &s.Frontiers, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return snapshots, nil
}

// Delete deletes a snapshot
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM snapshots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}

// Close closes the connection pool
func (r *SnapshotRepository) Close() error {
	r.pool.Close()
	return nil
}
