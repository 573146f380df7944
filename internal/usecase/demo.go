package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"flowsync/internal/domain"
	"flowsync/internal/replica"
	"flowsync/pkg/utils"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OriginSnapshotID is the repository key of the snapshot both replicas start from
const OriginSnapshotID = "origin"

// DemoUseCase implements domain.DemoUseCase
type DemoUseCase struct {
	harness *replica.Harness
	repo    domain.SnapshotRepository
	logger  *zap.Logger
}

// NewDemoUseCase creates the demo use case. The origin snapshot is loaded from repo
// when present so a restart resumes from the same seed; otherwise it is built and saved.
func NewDemoUseCase(ctx context.Context, repo domain.SnapshotRepository, logger *zap.Logger, opts ...replica.Option) (*DemoUseCase, error) {
	origin, err := repo.Load(ctx, OriginSnapshotID)
	switch {
	case err == nil:
		logger.Info("Reusing stored origin snapshot", zap.Int("bytes", len(origin.Data)))
		opts = append(opts, replica.WithSnapshot(origin.Data))
	case errors.Is(err, domain.ErrSnapshotNotFound):
		origin = nil
	default:
		return nil, fmt.Errorf("failed to load origin snapshot: %w", err)
	}

	opts = append([]replica.Option{replica.WithLogger(logger.Named("replica"))}, opts...)
	h, err := replica.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create replicas: %w", err)
	}

	if origin == nil {
		snapshot := &domain.Snapshot{
			ID:        OriginSnapshotID,
			Replica:   OriginSnapshotID,
			Data:      h.Snapshot(),
			CreatedAt: utils.GetTimeNow(),
		}
		if err := repo.Save(ctx, snapshot); err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to save origin snapshot: %w", err)
		}
	}

	return &DemoUseCase{
		harness: h,
		repo:    repo,
		logger:  logger,
	}, nil
}

// State returns a replica's view state
func (uc *DemoUseCase) State(id domain.ReplicaID) (domain.ViewState, error) {
	return uc.harness.State(id)
}

// MoveNode drags a node
func (uc *DemoUseCase) MoveNode(id domain.ReplicaID, nodeID string, pos domain.Position) (domain.ViewState, error) {
	return uc.harness.MoveNode(id, nodeID, pos)
}

// PatchNode applies a JSON merge patch to a node. Only position changes reach the document.
func (uc *DemoUseCase) PatchNode(id domain.ReplicaID, nodeID string, patch domain.NodePatch) (domain.ViewState, error) {
	return uc.harness.PatchNode(id, nodeID, func(current domain.Node) (domain.Node, error) {
		original, err := json.Marshal(current)
		if err != nil {
			return domain.Node{}, fmt.Errorf("failed to encode node: %w", err)
		}
		merged, err := jsonpatch.MergePatch(original, patch)
		if err != nil {
			return domain.Node{}, domain.ErrInvalidPatch{Reason: err.Error()}
		}

		var next domain.Node
		if err := json.Unmarshal(merged, &next); err != nil {
			return domain.Node{}, domain.ErrInvalidPatch{Reason: err.Error()}
		}
		if next.ID != nodeID {
			return domain.Node{}, domain.ErrInvalidPatch{Reason: "node id cannot change"}
		}
		return next, nil
	})
}

// RemoveNode deletes a node and its edges
func (uc *DemoUseCase) RemoveNode(id domain.ReplicaID, nodeID string) (domain.ViewState, error) {
	return uc.harness.RemoveNode(id, nodeID)
}

// Connect adds an edge between two nodes
func (uc *DemoUseCase) Connect(id domain.ReplicaID, source, target string) (domain.ViewState, error) {
	return uc.harness.Connect(id, source, target)
}

// RemoveEdge deletes an edge
func (uc *DemoUseCase) RemoveEdge(id domain.ReplicaID, edgeID string) (domain.ViewState, error) {
	return uc.harness.RemoveEdge(id, edgeID)
}

// Scrub moves a replica's history cursor
func (uc *DemoUseCase) Scrub(id domain.ReplicaID, version int) (domain.ViewState, error) {
	return uc.harness.Scrub(id, version)
}

// Connected reports whether the replicas exchange changes
func (uc *DemoUseCase) Connected() bool {
	return uc.harness.Connected()
}

// SetConnected toggles the simulated partition
func (uc *DemoUseCase) SetConnected(connected bool) error {
	return uc.harness.SetConnected(connected)
}

// SaveSnapshot persists a full export of a replica's document
func (uc *DemoUseCase) SaveSnapshot(ctx context.Context, id domain.ReplicaID) (*domain.Snapshot, error) {
	data, frontiers, err := uc.harness.ExportSnapshot(id)
	if err != nil {
		return nil, err
	}

	snapshot := &domain.Snapshot{
		ID:        fmt.Sprintf("%s-%s", id, uuid.NewString()),
		Replica:   string(id),
		Data:      data,
		Frontiers: frontiers.String(),
		CreatedAt: utils.GetTimeNow(),
	}
	if err := uc.repo.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	uc.logger.Info("Snapshot saved",
		zap.String("id", snapshot.ID),
		zap.String("replica", snapshot.Replica),
		zap.Int("bytes", len(data)))
	return snapshot, nil
}

// ListSnapshots returns every stored snapshot, oldest first
func (uc *DemoUseCase) ListSnapshots(ctx context.Context) ([]*domain.Snapshot, error) {
	snapshots, err := uc.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// DeleteSnapshot removes a stored snapshot
func (uc *DemoUseCase) DeleteSnapshot(ctx context.Context, id string) error {
	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}
	uc.logger.Info("Snapshot deleted", zap.String("id", id))
	return nil
}

// Subscribe registers fn for view state changes of either replica
func (uc *DemoUseCase) Subscribe(fn func(domain.ViewState)) func() {
	return uc.harness.Observe(replica.Observer(fn))
}

// Close releases the replicas
func (uc *DemoUseCase) Close() {
	uc.harness.Close()
}
