package flow

import (
	"flowsync/internal/domain"
	"flowsync/pkg/crdt"

	"github.com/pkg/errors"
)

// Seed writes the given nodes and edges into an empty document, one map per record
// in input order, and commits them as a single change.
func Seed(doc *crdt.Document, nodes []domain.Node, edges []domain.Edge) error {
	nodeList := doc.GetList(nodesContainer)
	for i, n := range nodes {
		m, err := nodeList.InsertMap(i)
		if err != nil {
			return errors.Wrapf(err, "failed to seed node %s", n.ID)
		}
		if err := writeNode(m, n); err != nil {
			return errors.Wrapf(err, "failed to seed node %s", n.ID)
		}
	}

	edgeList := doc.GetList(edgesContainer)
	for i, e := range edges {
		m, err := edgeList.InsertMap(i)
		if err != nil {
			return errors.Wrapf(err, "failed to seed edge %s", e.ID)
		}
		if err := writeEdge(m, e); err != nil {
			return errors.Wrapf(err, "failed to seed edge %s", e.ID)
		}
	}

	doc.Commit()
	return nil
}

// SeedSnapshot builds the origin document from the given records and returns its snapshot.
func SeedSnapshot(nodes []domain.Node, edges []domain.Edge) ([]byte, error) {
	origin := crdt.NewDocument()
	if err := Seed(origin, nodes, edges); err != nil {
		return nil, err
	}
	return origin.ExportSnapshot()
}
