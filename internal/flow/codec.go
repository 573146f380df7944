package flow

import (
	"fmt"

	"flowsync/internal/domain"
	"flowsync/pkg/crdt"
)

const (
	nodesContainer = "nodes"
	edgesContainer = "edges"
)

func writeNode(m *crdt.Map, n domain.Node) error {
	if err := m.Set("id", n.ID); err != nil {
		return err
	}
	pos, err := m.SetMap("position")
	if err != nil {
		return err
	}
	if err := pos.Set("x", n.Position.X); err != nil {
		return err
	}
	if err := pos.Set("y", n.Position.Y); err != nil {
		return err
	}
	return m.Set("data", n.Data)
}

func writeEdge(m *crdt.Map, e domain.Edge) error {
	if err := m.Set("id", e.ID); err != nil {
		return err
	}
	if err := m.Set("source", e.Source); err != nil {
		return err
	}
	return m.Set("target", e.Target)
}

// readNodes materializes the node list of the state the document currently shows.
func readNodes(doc *crdt.Document) ([]domain.Node, error) {
	values := doc.GetList(nodesContainer).Value()
	nodes := make([]domain.Node, 0, len(values))
	for i, v := range values {
		n, err := nodeFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// readEdges materializes the edge list of the state the document currently shows.
func readEdges(doc *crdt.Document) ([]domain.Edge, error) {
	values := doc.GetList(edgesContainer).Value()
	edges := make([]domain.Edge, 0, len(values))
	for i, v := range values {
		e, err := edgeFromValue(v)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func nodeFromValue(v any) (domain.Node, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return domain.Node{}, fmt.Errorf("expected map, got %T", v)
	}

	n := domain.Node{ID: stringField(m, "id")}
	if pos, ok := m["position"].(map[string]any); ok {
		n.Position = positionFromValue(pos)
	}
	if data, ok := m["data"].(map[string]any); ok {
		n.Data = data
	}
	return n, nil
}

func positionFromValue(m map[string]any) domain.Position {
	x, _ := m["x"].(float64)
	y, _ := m["y"].(float64)
	return domain.Position{X: x, Y: y}
}

func edgeFromValue(v any) (domain.Edge, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return domain.Edge{}, fmt.Errorf("expected map, got %T", v)
	}
	return domain.Edge{
		ID:     stringField(m, "id"),
		Source: stringField(m, "source"),
		Target: stringField(m, "target"),
	}, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
