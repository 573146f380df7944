package flow

import (
	"testing"

	"flowsync/internal/domain"
	"flowsync/pkg/crdt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func mountedView(t *testing.T) *View {
	t.Helper()
	doc := seededDoc(t, domain.InitialNodes(), domain.InitialEdges())
	v := NewView(doc, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, v.Mount())
	t.Cleanup(v.Close)
	return v
}

func TestMountStartsAtFirstVersion(t *testing.T) {
	v := mountedView(t)

	s := v.State()
	assert.Equal(t, 1, s.Version)
	assert.Equal(t, 1, s.MaxVersion)
	assert.Len(t, s.Nodes, len(domain.InitialNodes()))
	assert.Len(t, s.Edges, len(domain.InitialEdges()))
	assert.Equal(t, 1, v.HistoryLen())
}

func TestGesturesAdvanceVersion(t *testing.T) {
	v := mountedView(t)

	require.NoError(t, v.MoveNode("2", domain.Position{X: 5, Y: 6}))
	assert.Equal(t, 2, v.State().Version)

	edge, err := v.Connect("3", "4")
	require.NoError(t, err)
	assert.Equal(t, "reactflow__edge-3-4", edge.ID)
	assert.Equal(t, 3, v.State().MaxVersion)

	// connecting the same pair again is a no-op
	_, err = v.Connect("3", "4")
	require.NoError(t, err)
	assert.Equal(t, 3, v.State().MaxVersion)

	require.NoError(t, v.RemoveEdge(edge.ID))
	assert.Equal(t, 4, v.State().MaxVersion)

	assert.ErrorIs(t, v.MoveNode("missing", domain.Position{}), domain.ErrNodeNotFound)
	assert.ErrorIs(t, v.RemoveEdge("missing"), domain.ErrEdgeNotFound)
	_, err = v.Connect("1", "missing")
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestRemoveNodeDropsAttachedEdges(t *testing.T) {
	v := mountedView(t)

	require.NoError(t, v.RemoveNode("1"))

	nodes, err := readNodes(v.Document())
	require.NoError(t, err)
	edges, err := readEdges(v.Document())
	require.NoError(t, err)

	assert.Equal(t, []string{"2", "3", "4"}, nodeIDs(nodes))
	assert.Equal(t, []domain.Edge{{ID: "e2-3", Source: "2", Target: "3"}}, edges)
	assert.Equal(t, 2, v.HistoryLen(), "node and edge removal commit together")
}

func TestRemoteChangeReplacesEditorState(t *testing.T) {
	v := mountedView(t)

	peer := crdt.NewDocument()
	snapshot, err := v.Document().ExportSnapshot()
	require.NoError(t, err)
	require.NoError(t, peer.Import(snapshot))

	pv := NewView(peer)
	require.NoError(t, pv.Mount())
	defer pv.Close()
	require.NoError(t, pv.MoveNode("3", domain.Position{X: 99, Y: 1}))

	update, err := peer.ExportFrom(v.Document().Version())
	require.NoError(t, err)
	require.NoError(t, v.Document().Import(update))

	s := v.State()
	assert.Equal(t, domain.Position{X: 99, Y: 1}, s.Nodes[2].Position)
	assert.Equal(t, 2, s.Version)
	assert.Equal(t, 2, s.MaxVersion)
	assert.True(t, v.TakeChanged())
	assert.False(t, v.TakeChanged())
}

func TestCloseStopsListening(t *testing.T) {
	doc := seededDoc(t, domain.InitialNodes(), domain.InitialEdges())
	v := NewView(doc)
	require.NoError(t, v.Mount())
	v.Close()

	peer := crdt.NewDocument()
	snapshot, err := doc.ExportSnapshot()
	require.NoError(t, err)
	require.NoError(t, peer.Import(snapshot))
	pv := NewView(peer)
	require.NoError(t, pv.Mount())
	require.NoError(t, pv.MoveNode("1", domain.Position{X: 1, Y: 1}))

	update, err := peer.ExportFrom(doc.Version())
	require.NoError(t, err)
	require.NoError(t, doc.Import(update))

	assert.Equal(t, 1, v.State().MaxVersion)
	assert.Equal(t, domain.InitialNodes()[0].Position, v.State().Nodes[0].Position)
}

func TestScrubRoundTrip(t *testing.T) {
	v := mountedView(t)

	// recorded[i] is the state at history index i
	recorded := []domain.ViewState{v.State()}
	for i := 1; i <= 3; i++ {
		require.NoError(t, v.MoveNode("1", domain.Position{X: float64(i * 10), Y: float64(i)}))
		recorded = append(recorded, v.State())
	}
	require.Equal(t, 4, v.HistoryLen())
	maxVersion := v.State().MaxVersion
	require.Equal(t, 4, maxVersion)

	for k := 0; k < maxVersion; k++ {
		require.NoError(t, v.Scrub(k))
		s := v.State()
		want := recorded[max(k, 1)-1]
		assert.Equal(t, want.Nodes, s.Nodes, "version %d", k)
		assert.Equal(t, want.Edges, s.Edges, "version %d", k)
		assert.Equal(t, k, s.Version)
		assert.Equal(t, maxVersion, s.MaxVersion)
	}

	require.NoError(t, v.Scrub(maxVersion))
	assert.False(t, v.Document().IsDetached())
	assert.Equal(t, recorded[3].Nodes, v.State().Nodes)

	require.NoError(t, v.MoveNode("2", domain.Position{X: -1, Y: -1}))
	assert.Equal(t, 5, v.HistoryLen())
	assert.Equal(t, 5, v.State().Version)
}

func TestScrubbedGesturesAreNotPersisted(t *testing.T) {
	v := mountedView(t)
	require.NoError(t, v.MoveNode("1", domain.Position{X: 1, Y: 1}))
	require.NoError(t, v.MoveNode("1", domain.Position{X: 2, Y: 2}))

	require.NoError(t, v.Scrub(1))
	assert.True(t, v.Document().IsDetached())
	changes := v.Document().ChangeCount()

	require.NoError(t, v.MoveNode("1", domain.Position{X: 50, Y: 50}))
	assert.Equal(t, domain.Position{X: 50, Y: 50}, v.State().Nodes[0].Position)
	assert.Equal(t, changes, v.Document().ChangeCount())
	assert.Equal(t, 3, v.HistoryLen())

	// the next refresh discards it
	require.NoError(t, v.Scrub(3))
	assert.Equal(t, domain.Position{X: 2, Y: 2}, v.State().Nodes[0].Position)
}

func TestRemoteChangeWhileScrubbedIsRecordedOnReturn(t *testing.T) {
	v := mountedView(t)
	require.NoError(t, v.MoveNode("1", domain.Position{X: 1, Y: 1}))

	peer := crdt.NewDocument()
	snapshot, err := v.Document().ExportSnapshot()
	require.NoError(t, err)
	require.NoError(t, peer.Import(snapshot))

	require.NoError(t, v.Scrub(1))
	historical := v.State()

	pv := NewView(peer)
	require.NoError(t, pv.Mount())
	defer pv.Close()
	require.NoError(t, pv.MoveNode("4", domain.Position{X: 7, Y: 7}))
	update, err := peer.ExportFrom(v.Document().Version())
	require.NoError(t, err)
	require.NoError(t, v.Document().Import(update))

	assert.Equal(t, historical, v.State(), "historical view must not be overwritten")

	require.NoError(t, v.Scrub(v.State().MaxVersion))
	s := v.State()
	assert.Equal(t, 3, s.MaxVersion)
	assert.Equal(t, 3, s.Version)
	assert.Equal(t, domain.Position{X: 7, Y: 7}, s.Nodes[3].Position)
	assert.Equal(t, domain.Position{X: 1, Y: 1}, s.Nodes[0].Position)
}

func TestScrubOutOfRange(t *testing.T) {
	v := mountedView(t)

	var rangeErr domain.ErrVersionOutOfRange
	assert.ErrorAs(t, v.Scrub(-1), &rangeErr)
	assert.ErrorAs(t, v.Scrub(2), &rangeErr)

	unmounted := NewView(crdt.NewDocument())
	assert.ErrorIs(t, unmounted.Scrub(0), ErrNotMounted)
}
