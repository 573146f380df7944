package flow

import (
	"sync"

	"flowsync/internal/domain"
	"flowsync/pkg/crdt"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
	"github.com/sanity-io/litter"
	"go.uber.org/zap"
)

// ErrNotMounted is returned by operations that need the view's history.
var ErrNotMounted = errors.New("view is not mounted")

// ViewOption configures a View
type ViewOption func(*View)

// WithLogger sets the logger used by the view
func WithLogger(logger *zap.Logger) ViewOption {
	return func(v *View) {
		v.logger = logger
	}
}

// View is one replica's editor: the node and edge collections it shows, the history
// of frontiers it can scrub through, and the cursor into that history.
//
// While the cursor is at the tip, gestures are projected into the document and remote
// changes replace the editor state. While scrubbed, the document is checked out at a
// historical frontier and gestures only change the editor state until the next refresh.
type View struct {
	mu sync.Mutex

	doc       *crdt.Document
	projector *Projector
	history   History
	logger    *zap.Logger

	nodes      []domain.Node
	edges      []domain.Edge
	version    int
	maxVersion int

	sub     crdt.SubscriptionID
	mounted bool
	changed bool
}

// NewView creates an unmounted view over doc.
func NewView(doc *crdt.Document, opts ...ViewOption) *View {
	v := &View{
		doc:       doc,
		projector: NewProjector(doc),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Document returns the document the view edits.
func (v *View) Document() *crdt.Document {
	return v.doc
}

// Mount records the current frontier as the first history entry, loads the editor
// state from the document, starts listening for remote changes and runs the
// projector once.
func (v *View) Mount() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.mounted {
		return nil
	}

	v.history.Append(v.doc.Frontiers())
	if err := v.refreshLocked(); err != nil {
		return err
	}
	v.sub = v.doc.Subscribe(v.onEvent)
	v.mounted = true

	if err := v.projectLocked(); err != nil {
		return err
	}
	v.logger.Info("View mounted",
		zap.Int("nodes", len(v.nodes)),
		zap.Int("edges", len(v.edges)),
		zap.Int("version", v.version))
	return nil
}

// Close stops listening for document changes.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted {
		return
	}
	v.doc.Unsubscribe(v.sub)
	v.mounted = false
}

// State returns a deep copy of what the editor currently shows.
func (v *View) State() domain.ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()

	src := domain.ViewState{
		Nodes:      v.nodes,
		Edges:      v.edges,
		Version:    v.version,
		MaxVersion: v.maxVersion,
	}
	var out domain.ViewState
	if err := copier.CopyWithOption(&out, &src, copier.Option{DeepCopy: true}); err != nil {
		v.logger.Warn("Failed to copy view state", zap.Error(err))
		return src
	}
	return out
}

// Node returns the editor node with the given id.
func (v *View) Node(id string) (domain.Node, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.nodeIndex(id)
	if i < 0 {
		return domain.Node{}, false
	}
	var out domain.Node
	if err := copier.CopyWithOption(&out, &v.nodes[i], copier.Option{DeepCopy: true}); err != nil {
		return v.nodes[i], true
	}
	return out, true
}

// HistoryLen returns the number of recorded frontiers.
func (v *View) HistoryLen() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.history.Len()
}

// Live reports whether the cursor is at the tip.
func (v *View) Live() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.live()
}

// TakeChanged reports whether the editor state changed since the last call.
func (v *View) TakeChanged() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := v.changed
	v.changed = false
	return changed
}

// MoveNode is a drag gesture.
func (v *View) MoveNode(id string, pos domain.Position) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.nodeIndex(id)
	if i < 0 {
		return domain.ErrNodeNotFound
	}
	v.nodes[i].Position = pos
	return v.gestureLocked()
}

// UpdateNode replaces the editor node with the same id.
func (v *View) UpdateNode(n domain.Node) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.nodeIndex(n.ID)
	if i < 0 {
		return domain.ErrNodeNotFound
	}
	v.nodes[i] = n
	return v.gestureLocked()
}

// RemoveNode deletes a node and every edge attached to it.
func (v *View) RemoveNode(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.nodeIndex(id)
	if i < 0 {
		return domain.ErrNodeNotFound
	}
	v.nodes = append(v.nodes[:i:i], v.nodes[i+1:]...)

	edges := make([]domain.Edge, 0, len(v.edges))
	for _, e := range v.edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	v.edges = edges
	return v.gestureLocked()
}

// Connect adds an edge from source to target. Connecting an already connected pair
// does nothing.
func (v *View) Connect(source, target string) (domain.Edge, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.nodeIndex(source) < 0 || v.nodeIndex(target) < 0 {
		return domain.Edge{}, domain.ErrNodeNotFound
	}

	edge := domain.Edge{ID: domain.EdgeID(source, target), Source: source, Target: target}
	if v.edgeIndex(edge.ID) >= 0 {
		return edge, nil
	}
	v.edges = append(v.edges, edge)
	return edge, v.gestureLocked()
}

// RemoveEdge deletes an edge.
func (v *View) RemoveEdge(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.edgeIndex(id)
	if i < 0 {
		return domain.ErrEdgeNotFound
	}
	v.edges = append(v.edges[:i:i], v.edges[i+1:]...)
	return v.gestureLocked()
}

// Scrub moves the cursor to k, showing the state recorded at history index max(k,1)-1.
// Landing on the last recorded entry reattaches the document to its latest state.
func (v *View) Scrub(k int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted {
		return ErrNotMounted
	}
	if k < 0 || k > v.maxVersion {
		return domain.ErrVersionOutOfRange{Version: k, Max: v.maxVersion}
	}

	idx := max(k, 1) - 1
	if err := v.doc.Checkout(v.history.At(idx)); err != nil {
		return errors.Wrapf(err, "failed to check out version %d", k)
	}
	if idx == v.history.Len()-1 {
		v.doc.CheckoutToLatest()
	}
	if err := v.refreshLocked(); err != nil {
		return err
	}
	v.version = k
	v.changed = true

	if v.live() {
		// remote changes that arrived while scrubbed are on the tip now
		v.recordLocked()
	}
	v.logger.Debug("Scrubbed",
		zap.Int("version", v.version),
		zap.Int("maxVersion", v.maxVersion),
		zap.Bool("detached", v.doc.IsDetached()))
	return nil
}

func (v *View) onEvent(ev *crdt.Event) {
	if ev.Local {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.mounted {
		return
	}
	if !v.live() {
		v.logger.Debug("Remote change held while scrubbed",
			zap.Stringer("frontiers", ev.Frontiers),
			zap.Int("version", v.version))
		return
	}

	if err := v.refreshLocked(); err != nil {
		v.logger.Error("Failed to refresh view", zap.Error(err))
		return
	}
	v.recordLocked()
	v.changed = true
}

func (v *View) gestureLocked() error {
	v.changed = true
	if !v.mounted || !v.live() {
		return nil
	}
	return v.projectLocked()
}

func (v *View) projectLocked() error {
	changed, err := v.projector.Project(v.nodes, v.edges, &v.history)
	if err != nil {
		return err
	}
	if changed {
		v.logger.Debug("Projected local change", zap.Int("history", v.history.Len()))
	}
	v.version = v.history.Len()
	v.maxVersion = v.history.Len()
	return nil
}

func (v *View) recordLocked() {
	if v.history.AppendIfNew(v.doc.Frontiers()) {
		v.version = v.history.Len()
		v.maxVersion = v.history.Len()
	}
}

func (v *View) refreshLocked() error {
	nodes, err := readNodes(v.doc)
	if err != nil {
		return errors.Wrap(err, "failed to read nodes")
	}
	edges, err := readEdges(v.doc)
	if err != nil {
		return errors.Wrap(err, "failed to read edges")
	}
	v.nodes = nodes
	v.edges = edges

	if ce := v.logger.Check(zap.DebugLevel, "View refreshed"); ce != nil {
		ce.Write(zap.String("nodes", litter.Sdump(nodes)), zap.String("edges", litter.Sdump(edges)))
	}
	return nil
}

func (v *View) live() bool {
	return v.version == v.maxVersion
}

func (v *View) nodeIndex(id string) int {
	for i, n := range v.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (v *View) edgeIndex(id string) int {
	for i, e := range v.edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}
