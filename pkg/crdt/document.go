package crdt

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
)

// Document is a replica of a CRDT container tree.
//
// Mutations made through List and Map handles are applied immediately and
// collected into a pending transaction; Commit turns them into one Change.
// Import, export and checkout commit pending operations first.
// A Document is safe for concurrent use.
type Document struct {
	mu sync.RWMutex

	sid         SessionID
	nextCounter uint64
	maxLamport  uint64

	// changes is the oplog in integration order, which is always a causal order.
	changes   []*Change
	bySession map[SessionID][]*Change
	vv        VersionVector
	frontiers Frontiers

	latest     *state
	latestTail opKey

	detached   *state
	detachedAt Frontiers

	pending        []Op
	pendingLamport uint64
	pendingDeps    Frontiers

	// waiting holds imported changes whose dependencies have not arrived yet.
	waiting []*Change

	subs    []subscription
	nextSub SubscriptionID
}

// NewDocument creates an empty document owned by a fresh session.
func NewDocument() *Document {
	return NewDocumentWithSession(NewSessionID())
}

// NewDocumentWithSession creates an empty document owned by the given session.
func NewDocumentWithSession(sid SessionID) *Document {
	return &Document{
		sid:         sid,
		nextCounter: 1,
		bySession:   make(map[SessionID][]*Change),
		vv:          NewVersionVector(),
		frontiers:   Frontiers{},
		latest:      newState(),
	}
}

// SessionID returns the session that owns local operations of this document.
func (d *Document) SessionID() SessionID {
	return d.sid
}

// GetList returns the root list container with the given name.
func (d *Document) GetList(name string) *List {
	return &List{doc: d, id: RootContainerID(name, ContainerList)}
}

// GetMap returns the root map container with the given name.
func (d *Document) GetMap(name string) *Map {
	return &Map{doc: d, id: RootContainerID(name, ContainerMap)}
}

// Commit turns the pending operations into one change and notifies local subscribers.
// It is a no-op when nothing is pending.
func (d *Document) Commit() {
	d.mu.Lock()
	ev := d.commitLocked()
	d.mu.Unlock()

	d.emit(ev)
}

// Frontiers returns the frontier of the state currently visible: the checked-out
// frontier while detached, the oplog heads otherwise.
func (d *Document) Frontiers() Frontiers {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.detached != nil {
		return d.detachedAt.Clone()
	}
	return d.frontiers.Clone()
}

// OplogFrontiers returns the heads of everything the document knows, detached or not.
func (d *Document) OplogFrontiers() Frontiers {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.frontiers.Clone()
}

// Version returns the version vector of committed operations.
func (d *Document) Version() VersionVector {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.vv.Clone()
}

// ChangeCount returns the number of committed changes in the oplog.
func (d *Document) ChangeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.changes)
}

// IsDetached reports whether the document shows a historical checkout.
func (d *Document) IsDetached() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.detached != nil
}

// Checkout materializes the state at the given frontier and detaches the document
// from the latest state. While detached, mutations fail with ErrDetached.
func (d *Document) Checkout(f Frontiers) error {
	d.mu.Lock()
	ev := d.commitLocked()
	err := d.checkoutLocked(f)
	d.mu.Unlock()

	d.emit(ev)
	return err
}

func (d *Document) checkoutLocked(f Frontiers) error {
	for _, id := range f {
		if !d.vv.Includes(id) {
			return errors.Wrapf(ErrUnknownFrontiers, "checkout %s", id)
		}
	}

	upto := d.closure(f)
	s, _, err := replay(d.changes, upto)
	if err != nil {
		return errors.Wrap(err, "failed to materialize checkout")
	}

	d.detached = s
	d.detachedAt = NewFrontiers(f...)
	return nil
}

// CheckoutToLatest reattaches the document to its latest state.
func (d *Document) CheckoutToLatest() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.detached = nil
	d.detachedAt = nil
}

// closure returns the version vector of the causal past of f, inclusive.
func (d *Document) closure(f Frontiers) VersionVector {
	upto := NewVersionVector()
	visited := mapset.NewThreadUnsafeSet[ID]()

	stack := make([]ID, len(f))
	copy(stack, f)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		upto.Extend(id)

		// Every earlier change of the same session is in the causal past too.
		for _, c := range d.bySession[id.SID] {
			if c.ID.Counter > id.Counter {
				break
			}
			if visited.Contains(c.ID) {
				continue
			}
			visited.Add(c.ID)
			stack = append(stack, c.Deps...)
		}
	}
	return upto
}

// view returns the state reads should observe. Callers must hold d.mu.
func (d *Document) view() *state {
	if d.detached != nil {
		return d.detached
	}
	return d.latest
}

// localOp applies a locally generated operation and adds it to the pending transaction.
func (d *Document) localOp(op Op) (ID, error) {
	if d.detached != nil {
		return NilID, ErrDetached
	}

	if len(d.pending) == 0 {
		d.pendingLamport = d.maxLamport + 1
		d.pendingDeps = d.frontiers.Clone()
	}

	id := ID{SID: d.sid, Counter: d.nextCounter}
	key := opKey{lamport: d.pendingLamport + uint64(len(d.pending)), sid: d.sid, counter: id.Counter}
	if err := d.latest.apply(id, op); err != nil {
		return NilID, err
	}

	d.pending = append(d.pending, op)
	d.nextCounter++
	d.latestTail = key
	return id, nil
}

func (d *Document) commitLocked() *Event {
	if len(d.pending) == 0 {
		return nil
	}

	start := d.nextCounter - uint64(len(d.pending))
	c := &Change{
		ID:      ID{SID: d.sid, Counter: start},
		Lamport: d.pendingLamport,
		Deps:    d.pendingDeps,
		Ops:     d.pending,
	}
	d.pending = nil
	d.pendingDeps = nil
	d.appendChange(c)

	return &Event{Local: true, Origin: OriginLocal, Frontiers: d.frontiers.Clone()}
}

// appendChange records a change whose dependencies are all known.
func (d *Document) appendChange(c *Change) {
	d.changes = append(d.changes, c)
	d.bySession[c.ID.SID] = append(d.bySession[c.ID.SID], c)
	d.frontiers = d.frontiers.advance(c.LastID(), c.Deps)
	d.vv.Extend(c.LastID())
	if l := c.lastLamport(); l > d.maxLamport {
		d.maxLamport = l
	}
	if c.ID.SID == d.sid && c.LastID().Counter >= d.nextCounter {
		d.nextCounter = c.LastID().Counter + 1
	}
}

// integrate adds imported changes whose dependencies are satisfied, keeping the rest
// waiting. It returns the changes that entered the oplog.
func (d *Document) integrate(incoming []*Change) []*Change {
	queue := append(d.waiting, incoming...)
	d.waiting = nil

	var added []*Change
	for progress := true; progress; {
		progress = false
		rest := queue[:0]
		for _, c := range queue {
			trimmed := c.trimKnown(d.vv)
			if trimmed == nil {
				progress = true
				continue
			}
			if !d.ready(trimmed) {
				rest = append(rest, trimmed)
				continue
			}
			d.appendChange(trimmed)
			added = append(added, trimmed)
			progress = true
		}
		queue = rest
	}

	d.waiting = queue
	return added
}

func (d *Document) ready(c *Change) bool {
	if c.ID.Counter != d.vv.Get(c.ID.SID)+1 {
		return false
	}
	for _, dep := range c.Deps {
		if !d.vv.Includes(dep) {
			return false
		}
	}
	return true
}

// applyAdded brings the latest state up to date with newly integrated changes.
// Operations that all sort after the current tail are applied in place; otherwise
// the state is replayed from the oplog.
func (d *Document) applyAdded(added []*Change) error {
	ops := make([]replayOp, 0)
	for _, c := range added {
		for i, op := range c.Ops {
			ops = append(ops, replayOp{key: c.opKey(i), id: c.opID(i), op: op})
		}
	}
	if len(ops) == 0 {
		return nil
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].key.less(ops[j].key) })

	if d.latestTail.less(ops[0].key) {
		for _, r := range ops {
			if err := d.latest.apply(r.id, r.op); err != nil {
				return err
			}
			d.latestTail = r.key
		}
		return nil
	}

	s, tail, err := replay(d.changes, nil)
	if err != nil {
		return err
	}
	d.latest = s
	d.latestTail = tail
	return nil
}

// oplogMark is the oplog as it was before an import, so a rejected import can be undone.
type oplogMark struct {
	changes     int
	bySession   map[SessionID]int
	vv          VersionVector
	frontiers   Frontiers
	maxLamport  uint64
	nextCounter uint64
	waiting     []*Change
}

func (d *Document) markLocked() oplogMark {
	m := oplogMark{
		changes:     len(d.changes),
		bySession:   make(map[SessionID]int, len(d.bySession)),
		vv:          d.vv.Clone(),
		frontiers:   d.frontiers.Clone(),
		maxLamport:  d.maxLamport,
		nextCounter: d.nextCounter,
		waiting:     append([]*Change(nil), d.waiting...),
	}
	for sid, cs := range d.bySession {
		m.bySession[sid] = len(cs)
	}
	return m
}

// rollbackLocked drops every change integrated since m and rebuilds the latest state
// from the remaining oplog.
func (d *Document) rollbackLocked(m oplogMark) error {
	d.changes = d.changes[:m.changes]
	for sid, cs := range d.bySession {
		n, ok := m.bySession[sid]
		if !ok {
			delete(d.bySession, sid)
			continue
		}
		d.bySession[sid] = cs[:n]
	}
	d.vv = m.vv
	d.frontiers = m.frontiers
	d.maxLamport = m.maxLamport
	d.nextCounter = m.nextCounter
	d.waiting = m.waiting

	s, tail, err := replay(d.changes, nil)
	if err != nil {
		return err
	}
	d.latest = s
	d.latestTail = tail
	return nil
}
