package replica

import (
	"sync"
	"sync/atomic"

	"flowsync/internal/domain"
	"flowsync/internal/flow"
	"flowsync/pkg/crdt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Option configures a Harness
type Option func(*Harness)

// WithLogger sets the harness logger. Views log through named children of it.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithManualFlush keeps deferred sync tasks queued until Flush is called.
func WithManualFlush() Option {
	return func(h *Harness) {
		h.manualFlush = true
	}
}

// WithSnapshot seeds both replicas from an existing origin snapshot instead of
// building one from the initial diagram.
func WithSnapshot(data []byte) Option {
	return func(h *Harness) {
		h.snapshot = data
	}
}

// WithDisconnected starts the harness partitioned.
func WithDisconnected() Option {
	return func(h *Harness) {
		h.connected.Store(false)
	}
}

// Observer receives the state of a replica whose editor changed.
type Observer func(domain.ViewState)

// Replica is one document and the view editing it.
type Replica struct {
	ID   domain.ReplicaID
	Doc  *crdt.Document
	View *flow.View

	sub crdt.SubscriptionID
}

// Harness owns the two replicas, the connection flag between them and the queue of
// deferred sync tasks. Operations are serialized; tasks queued by an operation run
// after it completes.
type Harness struct {
	mu sync.Mutex

	replicas map[domain.ReplicaID]*Replica
	order    []domain.ReplicaID
	snapshot []byte

	// connected is read from document callbacks that run while mu is held.
	connected   atomic.Bool
	outbox      outbox
	manualFlush bool

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int

	logger *zap.Logger
}

// New builds the origin snapshot (unless one is supplied), creates replicas "a" and
// "b" from it and mounts their views.
func New(opts ...Option) (*Harness, error) {
	h := &Harness{
		replicas:  make(map[domain.ReplicaID]*Replica),
		order:     []domain.ReplicaID{domain.ReplicaA, domain.ReplicaB},
		observers: make(map[int]Observer),
		logger:    zap.NewNop(),
	}
	h.connected.Store(true)
	for _, opt := range opts {
		opt(h)
	}

	if h.snapshot == nil {
		snapshot, err := flow.SeedSnapshot(domain.InitialNodes(), domain.InitialEdges())
		if err != nil {
			return nil, errors.Wrap(err, "failed to build origin snapshot")
		}
		h.snapshot = snapshot
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i, id := range h.order {
		peer := h.order[1-i]
		doc := crdt.NewDocument()
		if err := doc.Import(h.snapshot); err != nil {
			return nil, errors.Wrapf(err, "failed to seed replica %s", id)
		}

		r := &Replica{
			ID:   id,
			Doc:  doc,
			View: flow.NewView(doc, flow.WithLogger(h.logger.Named("view").With(zap.String("replica", string(id))))),
		}
		r.sub = doc.Subscribe(h.onChange(id, peer))
		h.replicas[id] = r
	}

	for _, id := range h.order {
		r := h.replicas[id]
		if err := r.View.Mount(); err != nil {
			return nil, errors.Wrapf(err, "failed to mount replica %s", id)
		}
		r.View.TakeChanged()
		historyLength.WithLabelValues(string(id)).Set(float64(r.View.HistoryLen()))
	}
	if !h.manualFlush {
		h.drainLocked()
	}
	connectedGauge.Set(boolGauge(h.connected.Load()))

	h.logger.Info("Replica harness ready",
		zap.Int("snapshotBytes", len(h.snapshot)),
		zap.Bool("connected", h.connected.Load()),
		zap.Bool("manualFlush", h.manualFlush))
	return h, nil
}

// Snapshot returns the origin snapshot both replicas were seeded from.
func (h *Harness) Snapshot() []byte {
	return h.snapshot
}

// Replica returns the replica with the given id.
func (h *Harness) Replica(id domain.ReplicaID) (*Replica, error) {
	r, ok := h.replicas[id]
	if !ok {
		return nil, domain.ErrReplicaNotFound
	}
	return r, nil
}

// Observe registers fn for replica state changes and returns a function removing it.
// Observers run after the operation that caused the change has released the harness.
func (h *Harness) Observe(fn Observer) func() {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()

	id := h.nextObs
	h.nextObs++
	h.observers[id] = fn
	return func() {
		h.obsMu.Lock()
		defer h.obsMu.Unlock()
		delete(h.observers, id)
	}
}

// State returns what a replica's editor shows.
func (h *Harness) State(id domain.ReplicaID) (domain.ViewState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.stateLocked(id)
}

// MoveNode drags a node in a replica's editor.
func (h *Harness) MoveNode(id domain.ReplicaID, nodeID string, pos domain.Position) (domain.ViewState, error) {
	return h.run(id, func(r *Replica) error {
		return r.View.MoveNode(nodeID, pos)
	})
}

// PatchNode rewrites a node in a replica's editor. fn sees the node as it is
// while the replica is held, so no other gesture can land between the read and the write.
func (h *Harness) PatchNode(id domain.ReplicaID, nodeID string, fn func(domain.Node) (domain.Node, error)) (domain.ViewState, error) {
	return h.run(id, func(r *Replica) error {
		current, ok := r.View.Node(nodeID)
		if !ok {
			return domain.ErrNodeNotFound
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return r.View.UpdateNode(next)
	})
}

// RemoveNode deletes a node and its edges from a replica's editor.
func (h *Harness) RemoveNode(id domain.ReplicaID, nodeID string) (domain.ViewState, error) {
	return h.run(id, func(r *Replica) error {
		return r.View.RemoveNode(nodeID)
	})
}

// Connect adds an edge in a replica's editor.
func (h *Harness) Connect(id domain.ReplicaID, source, target string) (domain.ViewState, error) {
	return h.run(id, func(r *Replica) error {
		_, err := r.View.Connect(source, target)
		return err
	})
}

// RemoveEdge deletes an edge from a replica's editor.
func (h *Harness) RemoveEdge(id domain.ReplicaID, edgeID string) (domain.ViewState, error) {
	return h.run(id, func(r *Replica) error {
		return r.View.RemoveEdge(edgeID)
	})
}

// Scrub moves a replica's history cursor.
func (h *Harness) Scrub(id domain.ReplicaID, version int) (domain.ViewState, error) {
	return h.run(id, func(r *Replica) error {
		return r.View.Scrub(version)
	})
}

// Connected reports whether local changes are exchanged between the replicas.
func (h *Harness) Connected() bool {
	return h.connected.Load()
}

// SetConnected toggles the simulated partition. Reconnecting first brings both
// replicas up to date: a imports what b has, then b imports what a has.
// Disconnecting does not cancel tasks that are already queued.
func (h *Harness) SetConnected(connected bool) error {
	h.mu.Lock()

	var err error
	if connected && !h.connected.Load() {
		err = h.catchUpLocked()
	}
	h.connected.Store(connected)
	connectedGauge.Set(boolGauge(connected))
	h.logger.Info("Connection toggled", zap.Bool("connected", connected))

	if !h.manualFlush {
		h.drainLocked()
	}
	states := h.changedLocked()
	h.mu.Unlock()

	h.notify(states)
	return err
}

// Flush runs every queued sync task.
func (h *Harness) Flush() {
	h.mu.Lock()
	h.drainLocked()
	states := h.changedLocked()
	h.mu.Unlock()

	h.notify(states)
}

// Pending returns the number of queued sync tasks.
func (h *Harness) Pending() int {
	return h.outbox.len()
}

// ExportSnapshot returns a full snapshot of a replica's document and the frontier it ends at.
func (h *Harness) ExportSnapshot(id domain.ReplicaID) ([]byte, crdt.Frontiers, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, err := h.Replica(id)
	if err != nil {
		return nil, nil, err
	}
	data, err := r.Doc.ExportSnapshot()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to export replica %s", id)
	}
	return data, r.Doc.OplogFrontiers(), nil
}

// Close releases the document subscriptions of both replicas.
func (h *Harness) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range h.order {
		r := h.replicas[id]
		r.View.Close()
		r.Doc.Unsubscribe(r.sub)
	}
}

func (h *Harness) run(id domain.ReplicaID, fn func(*Replica) error) (domain.ViewState, error) {
	h.mu.Lock()

	r, err := h.Replica(id)
	if err != nil {
		h.mu.Unlock()
		return domain.ViewState{}, err
	}

	opErr := fn(r)
	if !h.manualFlush {
		h.drainLocked()
	}
	state, err := h.stateLocked(id)
	states := h.changedLocked()
	h.mu.Unlock()

	h.notify(states)
	if opErr != nil {
		return state, opErr
	}
	return state, err
}

// onChange queues a sync to peer for every local commit made while connected.
// It runs inside document callbacks, so it must not take h.mu.
func (h *Harness) onChange(self, peer domain.ReplicaID) crdt.Subscriber {
	return func(ev *crdt.Event) {
		if !ev.Local {
			return
		}
		commitsTotal.WithLabelValues(string(self)).Inc()

		if !h.connected.Load() {
			h.logger.Debug("Partitioned, change stays local",
				zap.String("replica", string(self)),
				zap.Stringer("frontiers", ev.Frontiers))
			return
		}
		h.outbox.push(syncTask{from: self, to: peer})
	}
}

func (h *Harness) drainLocked() {
	for {
		t, ok := h.outbox.pop()
		if !ok {
			return
		}
		if err := h.deliverLocked(t, "deferred"); err != nil {
			h.logger.Error("Deferred sync failed",
				zap.String("from", string(t.from)),
				zap.String("to", string(t.to)),
				zap.Error(err))
		}
	}
}

func (h *Harness) catchUpLocked() error {
	if err := h.deliverLocked(syncTask{from: domain.ReplicaB, to: domain.ReplicaA}, "catchup"); err != nil {
		return err
	}
	return h.deliverLocked(syncTask{from: domain.ReplicaA, to: domain.ReplicaB}, "catchup")
}

func (h *Harness) deliverLocked(t syncTask, trigger string) error {
	from := h.replicas[t.from]
	to := h.replicas[t.to]

	data, err := from.Doc.ExportFrom(to.Doc.Version())
	if err != nil {
		syncFailuresTotal.WithLabelValues(string(t.from), string(t.to)).Inc()
		return errors.Wrapf(err, "failed to export %s for %s", t.from, t.to)
	}
	if err := to.Doc.Import(data); err != nil {
		syncFailuresTotal.WithLabelValues(string(t.from), string(t.to)).Inc()
		return errors.Wrapf(err, "failed to import %s into %s", t.from, t.to)
	}

	syncExportsTotal.WithLabelValues(string(t.from), string(t.to), trigger).Inc()
	syncBytesTotal.WithLabelValues(string(t.from), string(t.to)).Add(float64(len(data)))
	h.logger.Debug("Synced replicas",
		zap.String("from", string(t.from)),
		zap.String("to", string(t.to)),
		zap.String("trigger", trigger),
		zap.Int("bytes", len(data)))
	return nil
}

func (h *Harness) stateLocked(id domain.ReplicaID) (domain.ViewState, error) {
	r, err := h.Replica(id)
	if err != nil {
		return domain.ViewState{}, err
	}
	s := r.View.State()
	s.Replica = id
	s.Connected = h.connected.Load()
	return s, nil
}

// changedLocked collects the states of replicas whose editors changed.
func (h *Harness) changedLocked() []domain.ViewState {
	var states []domain.ViewState
	for _, id := range h.order {
		r := h.replicas[id]
		historyLength.WithLabelValues(string(id)).Set(float64(r.View.HistoryLen()))
		if !r.View.TakeChanged() {
			continue
		}
		s, _ := h.stateLocked(id)
		states = append(states, s)
	}
	return states
}

func (h *Harness) notify(states []domain.ViewState) {
	if len(states) == 0 {
		return
	}

	h.obsMu.RLock()
	observers := make([]Observer, 0, len(h.observers))
	for _, fn := range h.observers {
		observers = append(observers, fn)
	}
	h.obsMu.RUnlock()

	for _, s := range states {
		for _, fn := range observers {
			fn(s)
		}
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
