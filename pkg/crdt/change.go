package crdt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContainerType is the kind of a container.
type ContainerType string

const (
	// ContainerMap is a last-writer-wins keyed map.
	ContainerMap ContainerType = "Map"
	// ContainerList is a replicated growable array.
	ContainerList ContainerType = "List"
)

// ContainerID names a container. Root containers are named by the application,
// child containers by the operation that created them.
type ContainerID string

// RootContainerID returns the id of the root container with the given name and type.
func RootContainerID(name string, t ContainerType) ContainerID {
	return ContainerID(fmt.Sprintf("cid:root-%s:%s", name, t))
}

func childContainerID(id ID, t ContainerType) ContainerID {
	return ContainerID(fmt.Sprintf("cid:%d@%s:%s", id.Counter, id.SID, t))
}

// Type returns the container type encoded in the id.
func (c ContainerID) Type() ContainerType {
	s := string(c)
	return ContainerType(s[strings.LastIndex(s, ":")+1:])
}

// OpKind is the kind of a CRDT operation.
type OpKind string

const (
	// OpMapSet sets a map key to a value or a new child container.
	OpMapSet OpKind = "map.set"
	// OpMapDelete removes a map key.
	OpMapDelete OpKind = "map.delete"
	// OpListInsert inserts an element right after an origin element.
	OpListInsert OpKind = "list.insert"
	// OpListDelete tombstones a list element.
	OpListDelete OpKind = "list.delete"
)

// Op is a single mutation of one container.
type Op struct {
	Container ContainerID   `json:"c"`
	Kind      OpKind        `json:"k"`
	Key       string        `json:"key,omitempty"`
	After     ID            `json:"after"`
	Target    ID            `json:"target"`
	Value     any           `json:"v,omitempty"`
	Child     ContainerType `json:"child,omitempty"`
}

// Change is a committed causal unit: a run of operations from one session
// that share the same dependencies.
type Change struct {
	// ID is the id of the first operation. The i-th operation has counter ID.Counter+i.
	ID ID `json:"id"`
	// Lamport is the lamport clock of the first operation.
	Lamport uint64 `json:"lamport"`
	// Deps is the frontier the change was made on.
	Deps Frontiers `json:"deps"`
	Ops  []Op      `json:"ops"`
}

// LastID returns the id of the last operation in the change.
func (c *Change) LastID() ID {
	return ID{SID: c.ID.SID, Counter: c.ID.Counter + uint64(len(c.Ops)) - 1}
}

func (c *Change) opID(i int) ID {
	return ID{SID: c.ID.SID, Counter: c.ID.Counter + uint64(i)}
}

func (c *Change) opKey(i int) opKey {
	return opKey{lamport: c.Lamport + uint64(i), sid: c.ID.SID, counter: c.ID.Counter + uint64(i)}
}

func (c *Change) lastLamport() uint64 {
	return c.Lamport + uint64(len(c.Ops)) - 1
}

// trimKnown drops the operations already covered by vv. It returns nil when
// nothing is left.
func (c *Change) trimKnown(vv VersionVector) *Change {
	known := vv.Get(c.ID.SID)
	if c.LastID().Counter <= known {
		return nil
	}
	if c.ID.Counter > known {
		return c
	}

	skip := known - c.ID.Counter + 1
	return &Change{
		ID:      ID{SID: c.ID.SID, Counter: c.ID.Counter + skip},
		Lamport: c.Lamport + skip,
		Deps:    NewFrontiers(ID{SID: c.ID.SID, Counter: known}),
		Ops:     c.Ops[skip:],
	}
}

// normalizeValue converts a value to the plain JSON form every replica will decode it to,
// so that local reads and merged reads agree.
func normalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, ErrInvalidValue{Message: err.Error()}
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, ErrInvalidValue{Message: err.Error()}
	}
	return out, nil
}
