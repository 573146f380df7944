package domain

import "fmt"

// Position is a node's location on the canvas
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a diagram node
type Node struct {
	ID       string         `json:"id"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data,omitempty"`
}

// Edge represents a connection between two nodes
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// EdgeID returns the id a connect gesture assigns to an edge between source and target.
func EdgeID(source, target string) string {
	return fmt.Sprintf("reactflow__edge-%s-%s", source, target)
}

// ReplicaID names one of the two replicas
type ReplicaID string

const (
	// ReplicaA is the left-hand replica
	ReplicaA ReplicaID = "a"
	// ReplicaB is the right-hand replica
	ReplicaB ReplicaID = "b"
)

// ParseReplicaID validates a replica id coming from a request
func ParseReplicaID(s string) (ReplicaID, error) {
	switch ReplicaID(s) {
	case ReplicaA, ReplicaB:
		return ReplicaID(s), nil
	}
	return "", ErrReplicaNotFound
}

// ViewState is what a replica's editor currently shows
type ViewState struct {
	Replica    ReplicaID `json:"replica"`
	Nodes      []Node    `json:"nodes"`
	Edges      []Edge    `json:"edges"`
	Version    int       `json:"version"`
	MaxVersion int       `json:"maxVersion"`
	Connected  bool      `json:"connected"`
}

// Live reports whether the view is pinned to the latest version
func (s ViewState) Live() bool {
	return s.Version == s.MaxVersion
}

// InitialNodes returns the nodes every replica starts from
func InitialNodes() []Node {
	return []Node{
		{ID: "1", Position: Position{X: 250, Y: 25}, Data: map[string]any{"label": "Input Node"}},
		{ID: "2", Position: Position{X: 100, Y: 125}, Data: map[string]any{"label": "Default Node"}},
		{ID: "3", Position: Position{X: 250, Y: 250}, Data: map[string]any{"label": "Output Node"}},
		{ID: "4", Position: Position{X: 400, Y: 125}, Data: map[string]any{"label": "Another Node"}},
	}
}

// InitialEdges returns the edges every replica starts from
func InitialEdges() []Edge {
	return []Edge{
		{ID: "e1-2", Source: "1", Target: "2"},
		{ID: "e2-3", Source: "2", Target: "3"},
		{ID: "e1-4", Source: "1", Target: "4"},
	}
}
