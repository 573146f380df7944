package crdt

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ExportMode is the kind of payload produced by an export.
type ExportMode string

const (
	// ModeSnapshot carries the whole oplog.
	ModeSnapshot ExportMode = "snapshot"
	// ModeUpdate carries the changes a peer is missing.
	ModeUpdate ExportMode = "update"
)

type envelope struct {
	Mode    ExportMode `json:"mode"`
	Changes []*Change  `json:"changes"`
}

// ExportSnapshot encodes every committed change. Importing it into an empty
// document reproduces this document's latest state and history.
func (d *Document) ExportSnapshot() ([]byte, error) {
	d.mu.Lock()
	ev := d.commitLocked()
	data, err := d.encodeLocked(ModeSnapshot, nil)
	d.mu.Unlock()

	d.emit(ev)
	return data, err
}

// ExportFrom encodes the changes a peer whose version is vv has not seen yet.
// Changes the peer partially knows are sent whole; Import trims the overlap.
func (d *Document) ExportFrom(vv VersionVector) ([]byte, error) {
	d.mu.Lock()
	ev := d.commitLocked()
	data, err := d.encodeLocked(ModeUpdate, vv)
	d.mu.Unlock()

	d.emit(ev)
	return data, err
}

func (d *Document) encodeLocked(mode ExportMode, vv VersionVector) ([]byte, error) {
	env := envelope{Mode: mode, Changes: make([]*Change, 0)}
	for _, c := range d.changes {
		if vv != nil && vv.Includes(c.LastID()) {
			continue
		}
		env.Changes = append(env.Changes, c)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode changes")
	}
	return data, nil
}

// Import integrates an export produced by any replica. Changes already known are
// skipped, changes whose dependencies are missing wait for a later import.
// Subscribers receive one event when new operations were added. When any operation
// cannot be applied the whole import is rejected and the document is left as it was.
// Importing into a detached document grows the oplog but leaves the checkout in place.
func (d *Document) Import(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return errors.Wrap(ErrDecode, err.Error())
	}
	if env.Mode != ModeSnapshot && env.Mode != ModeUpdate {
		return errors.Wrapf(ErrDecode, "unknown mode %q", env.Mode)
	}

	incoming := make([]*Change, 0, len(env.Changes))
	for _, c := range env.Changes {
		if c == nil || len(c.Ops) == 0 || c.ID.IsNil() {
			return errors.Wrap(ErrDecode, "empty change")
		}
		c.Deps = NewFrontiers(c.Deps...)
		incoming = append(incoming, c)
	}

	d.mu.Lock()
	local := d.commitLocked()
	mark := d.markLocked()
	added := d.integrate(incoming)
	err := d.applyAdded(added)
	if err != nil {
		// the rejected changes must not stay in the oplog
		if rbErr := d.rollbackLocked(mark); rbErr != nil {
			err = errors.Wrapf(rbErr, "failed to roll back after %v", err)
		}
		added = nil
	}
	var ev *Event
	if len(added) > 0 {
		ev = &Event{Local: false, Origin: OriginImport, Frontiers: d.frontiers.Clone()}
	}
	d.mu.Unlock()

	d.emit(local)
	if err != nil {
		return errors.Wrap(err, "failed to apply imported changes")
	}
	d.emit(ev)
	return nil
}
