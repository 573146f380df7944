package flow

import (
	"flowsync/internal/domain"
	"flowsync/pkg/crdt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
)

// Projector writes editor state back into a document, touching only what differs.
type Projector struct {
	doc *crdt.Document
}

// NewProjector creates a projector for doc.
func NewProjector(doc *crdt.Document) *Projector {
	return &Projector{doc: doc}
}

// Project reconciles nodes and edges into the document. When anything changed it
// commits once and records the new frontier in history.
func (p *Projector) Project(nodes []domain.Node, edges []domain.Edge, history *History) (bool, error) {
	nodesChanged, err := p.reconcileNodes(nodes)
	if err != nil {
		return false, errors.Wrap(err, "failed to reconcile nodes")
	}
	edgesChanged, err := p.reconcileEdges(edges)
	if err != nil {
		return false, errors.Wrap(err, "failed to reconcile edges")
	}

	if !nodesChanged && !edgesChanged {
		return false, nil
	}
	p.doc.Commit()
	history.Append(p.doc.Frontiers())
	return true, nil
}

func (p *Projector) reconcileNodes(nodes []domain.Node) (bool, error) {
	byID := make(map[string]domain.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	list := p.doc.GetList(nodesContainer)
	n := list.Len()
	changed := false
	del := 0
	for i := 0; i < n; i++ {
		m, err := list.GetMap(i - del)
		if err != nil {
			return false, err
		}
		id, _ := m.Get("id")
		source, ok := byID[asString(id)]
		if !ok {
			if err := list.Delete(i-del, 1); err != nil {
				return false, err
			}
			changed = true
			del++
			continue
		}

		pos, err := m.GetMap("position")
		if err != nil {
			return false, err
		}
		current := positionFromValue(pos.Value())
		if current != source.Position {
			if err := pos.Set("x", source.Position.X); err != nil {
				return false, err
			}
			if err := pos.Set("y", source.Position.Y); err != nil {
				return false, err
			}
			changed = true
		}
	}
	return changed, nil
}

// reconcileEdges skips the pass entirely when the counts match, even if endpoints differ.
func (p *Projector) reconcileEdges(edges []domain.Edge) (bool, error) {
	list := p.doc.GetList(edgesContainer)
	if list.Len() == len(edges) {
		return false, nil
	}

	current, err := readEdges(p.doc)
	if err != nil {
		return false, err
	}

	editorIDs := mapset.NewThreadUnsafeSet[string]()
	for _, e := range edges {
		editorIDs.Add(e.ID)
	}
	docIDs := mapset.NewThreadUnsafeSet[string]()
	for _, e := range current {
		docIDs.Add(e.ID)
	}

	changed := false
	del := 0
	for i, e := range current {
		if editorIDs.Contains(e.ID) {
			continue
		}
		if err := list.Delete(i-del, 1); err != nil {
			return false, err
		}
		changed = true
		del++
	}

	for _, e := range edges {
		if docIDs.Contains(e.ID) {
			continue
		}
		m, err := list.InsertMap(0)
		if err != nil {
			return false, err
		}
		if err := writeEdge(m, e); err != nil {
			return false, err
		}
		docIDs.Add(e.ID)
		changed = true
	}
	return changed, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
