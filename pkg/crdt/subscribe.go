package crdt

// EventOrigin tells subscribers where a document change came from.
type EventOrigin string

const (
	// OriginLocal marks a commit of local operations.
	OriginLocal EventOrigin = "local"
	// OriginImport marks operations integrated from a remote export.
	OriginImport EventOrigin = "import"
)

// Event is delivered to subscribers after the document's oplog grows.
type Event struct {
	Local     bool
	Origin    EventOrigin
	Frontiers Frontiers
}

// SubscriptionID identifies a registered callback.
type SubscriptionID uint64

// Subscriber is called for every event, outside the document lock.
type Subscriber func(*Event)

type subscription struct {
	id SubscriptionID
	fn Subscriber
}

// Subscribe registers fn and returns an id that can be passed to Unsubscribe.
// Callbacks may call back into the document.
func (d *Document) Subscribe(fn Subscriber) SubscriptionID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextSub++
	d.subs = append(d.subs, subscription{id: d.nextSub, fn: fn})
	return d.nextSub
}

// Unsubscribe removes a callback. Unknown ids are ignored.
func (d *Document) Unsubscribe(id SubscriptionID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			return
		}
	}
}

func (d *Document) emit(ev *Event) {
	if ev == nil {
		return
	}

	d.mu.RLock()
	subs := make([]subscription, len(d.subs))
	copy(subs, d.subs)
	d.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
