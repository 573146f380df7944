package domain

import (
	"context"
	"time"
)

// Snapshot is a persisted full export of a replica's document
type Snapshot struct {
	ID        string    `json:"id" bson:"_id"`
	Replica   string    `json:"replica" bson:"replica"`
	Data      []byte    `json:"data" bson:"data"`
	Frontiers string    `json:"frontiers" bson:"frontiers"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// SnapshotRepository defines the interface for snapshot storage
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	Load(ctx context.Context, id string) (*Snapshot, error)
	List(ctx context.Context) ([]*Snapshot, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// NodePatch is an RFC 7386 merge patch against a node record
type NodePatch []byte

// DemoUseCase defines the interface for the two-replica demo
type DemoUseCase interface {
	State(replica ReplicaID) (ViewState, error)
	MoveNode(replica ReplicaID, nodeID string, pos Position) (ViewState, error)
	PatchNode(replica ReplicaID, nodeID string, patch NodePatch) (ViewState, error)
	RemoveNode(replica ReplicaID, nodeID string) (ViewState, error)
	Connect(replica ReplicaID, source, target string) (ViewState, error)
	RemoveEdge(replica ReplicaID, edgeID string) (ViewState, error)
	Scrub(replica ReplicaID, version int) (ViewState, error)
	Connected() bool
	SetConnected(connected bool) error
	SaveSnapshot(ctx context.Context, replica ReplicaID) (*Snapshot, error)
	ListSnapshots(ctx context.Context) ([]*Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
	Subscribe(fn func(ViewState)) func()
}
