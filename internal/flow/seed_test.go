package flow

import (
	"testing"

	"flowsync/internal/domain"
	"flowsync/pkg/crdt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedPreservesStructure(t *testing.T) {
	doc := crdt.NewDocument()
	nodes := domain.InitialNodes()
	edges := domain.InitialEdges()

	require.NoError(t, Seed(doc, nodes, edges))

	gotNodes, err := readNodes(doc)
	require.NoError(t, err)
	gotEdges, err := readEdges(doc)
	require.NoError(t, err)

	require.Len(t, gotNodes, len(nodes))
	require.Len(t, gotEdges, len(edges))
	for i := range nodes {
		assert.Equal(t, nodes[i].ID, gotNodes[i].ID, "node %d id", i)
		assert.Equal(t, nodes[i].Position, gotNodes[i].Position, "node %d position", i)
		assert.Equal(t, nodes[i].Data, gotNodes[i].Data, "node %d data", i)
	}
	assert.Equal(t, edges, gotEdges)
	assert.Equal(t, 1, doc.ChangeCount(), "seed should commit once")
}

func TestSeedSnapshotImportsIdentically(t *testing.T) {
	snapshot, err := SeedSnapshot(domain.InitialNodes(), domain.InitialEdges())
	require.NoError(t, err)

	a := crdt.NewDocument()
	b := crdt.NewDocument()
	require.NoError(t, a.Import(snapshot))
	require.NoError(t, b.Import(snapshot))

	assert.Equal(t, a.Frontiers(), b.Frontiers())
	assert.Equal(t, a.GetList(nodesContainer).Value(), b.GetList(nodesContainer).Value())
	assert.Equal(t, a.GetList(edgesContainer).Value(), b.GetList(edgesContainer).Value())
}
