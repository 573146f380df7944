package mongo

import (
	"context"
	"errors"
	"fmt"

	"flowsync/internal/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SnapshotRepository is a MongoDB implementation of domain.SnapshotRepository
type SnapshotRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewSnapshotRepository creates a MongoDB snapshot repository over collection.
// The client is disconnected by Close; pass nil when the caller owns it.
func NewSnapshotRepository(client *mongo.Client, collection *mongo.Collection) *SnapshotRepository {
	return &SnapshotRepository{
		client:     client,
		collection: collection,
	}
}

// Connect opens a client for uri and verifies the server answers
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return client, nil
}

// Save stores a snapshot, replacing any snapshot with the same ID
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": snapshot.ID}, snapshot, opts)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load retrieves a snapshot by ID
func (r *SnapshotRepository) Load(ctx context.Context, id string) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&snapshot)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return &snapshot, nil
}

// List returns all snapshots, oldest first
func (r *SnapshotRepository) List(ctx context.Context) ([]*domain.Snapshot, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	snapshots := make([]*domain.Snapshot, 0)
	for cursor.Next(ctx) {
		var snapshot domain.Snapshot
		if err := cursor.Decode(&snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		snapshots = append(snapshots, &snapshot)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return snapshots, nil
}

// Delete deletes a snapshot
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrSnapshotNotFound
	}
	return nil
}

// Close disconnects the client when the repository owns it
func (r *SnapshotRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(context.Background())
}
