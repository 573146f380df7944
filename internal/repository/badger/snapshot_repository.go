package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"flowsync/internal/domain"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// SnapshotRepository is a BadgerDB implementation of domain.SnapshotRepository
type SnapshotRepository struct {
	db      *badger.DB
	options *Options
	logger  *zap.Logger
	done    chan struct{}
}

// NewSnapshotRepository opens a BadgerDB snapshot repository with the provided options
func NewSnapshotRepository(logger *zap.Logger, opts ...Option) (*SnapshotRepository, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	badgerOpts := badger.DefaultOptions(options.Path)
	badgerOpts.Logger = nil
	if options.InMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	r := &SnapshotRepository{
		db:      db,
		options: options,
		logger:  logger,
		done:    make(chan struct{}),
	}
	if options.GCInterval > 0 && !options.InMemory {
		go r.runGC()
	}
	return r, nil
}

func (r *SnapshotRepository) key(id string) []byte {
	return []byte(r.options.KeyPrefix + id)
}

// Save stores a snapshot, replacing any snapshot with the same ID
func (r *SnapshotRepository) Save(_ context.Context, snapshot *domain.Snapshot) error {
	value, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(r.key(snapshot.ID), value)
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by ID
func (r *SnapshotRepository) Load(_ context.Context, id string) (*domain.Snapshot, error) {
	var value []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(r.key(id))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot domain.Snapshot
	if err := json.Unmarshal(value, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	return &snapshot, nil
}

// List returns all snapshots, oldest first
func (r *SnapshotRepository) List(_ context.Context) ([]*domain.Snapshot, error) {
	var snapshots []*domain.Snapshot
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(r.options.KeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var snapshot domain.Snapshot
				if err := json.Unmarshal(val, &snapshot); err != nil {
					return err
				}
				snapshots = append(snapshots, &snapshot)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// Delete deletes a snapshot
func (r *SnapshotRepository) Delete(_ context.Context, id string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(r.key(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrSnapshotNotFound
			}
			return err
		}
		return txn.Delete(r.key(id))
	})
}

// Close stops garbage collection and closes the database
func (r *SnapshotRepository) Close() error {
	close(r.done)
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) runGC() {
	ticker := time.NewTicker(r.options.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				r.logger.Warn("BadgerDB GC failed", zap.Error(err))
			}
		}
	}
}
