package crdt

import (
	"sort"
)

type mapEntry struct {
	value   any
	child   ContainerID
	deleted bool
}

type mapState struct {
	entries map[string]*mapEntry
}

type listElem struct {
	id      ID
	value   any
	child   ContainerID
	deleted bool
}

type listState struct {
	elems []*listElem
}

// visible returns the elements that are not tombstoned.
func (l *listState) visible() []*listElem {
	out := make([]*listElem, 0, len(l.elems))
	for _, e := range l.elems {
		if !e.deleted {
			out = append(out, e)
		}
	}
	return out
}

func (l *listState) indexOf(id ID) int {
	for i, e := range l.elems {
		if e.id == id {
			return i
		}
	}
	return -1
}

// state is the materialized container tree at some version.
type state struct {
	maps  map[ContainerID]*mapState
	lists map[ContainerID]*listState
}

func newState() *state {
	return &state{
		maps:  make(map[ContainerID]*mapState),
		lists: make(map[ContainerID]*listState),
	}
}

func (s *state) mapOf(cid ContainerID) *mapState {
	m, ok := s.maps[cid]
	if !ok {
		m = &mapState{entries: make(map[string]*mapEntry)}
		s.maps[cid] = m
	}
	return m
}

func (s *state) listOf(cid ContainerID) *listState {
	l, ok := s.lists[cid]
	if !ok {
		l = &listState{}
		s.lists[cid] = l
	}
	return l
}

func (s *state) createChild(id ID, t ContainerType) ContainerID {
	if t == "" {
		return ""
	}
	cid := childContainerID(id, t)
	switch t {
	case ContainerMap:
		s.mapOf(cid)
	case ContainerList:
		s.listOf(cid)
	}
	return cid
}

// apply integrates one operation. Operations must arrive in opKey order.
func (s *state) apply(id ID, op Op) error {
	switch op.Kind {
	case OpMapSet:
		m := s.mapOf(op.Container)
		m.entries[op.Key] = &mapEntry{
			value: op.Value,
			child: s.createChild(id, op.Child),
		}

	case OpMapDelete:
		m := s.mapOf(op.Container)
		m.entries[op.Key] = &mapEntry{deleted: true}

	case OpListInsert:
		l := s.listOf(op.Container)
		pos := 0
		if !op.After.IsNil() {
			origin := l.indexOf(op.After)
			if origin < 0 {
				return ErrInvalidOperation{Message: "insert origin " + op.After.String() + " not found"}
			}
			pos = origin + 1
		}
		elem := &listElem{
			id:    id,
			value: op.Value,
			child: s.createChild(id, op.Child),
		}
		l.elems = append(l.elems, nil)
		copy(l.elems[pos+1:], l.elems[pos:])
		l.elems[pos] = elem

	case OpListDelete:
		l := s.listOf(op.Container)
		target := l.indexOf(op.Target)
		if target < 0 {
			return ErrInvalidOperation{Message: "delete target " + op.Target.String() + " not found"}
		}
		l.elems[target].deleted = true

	default:
		return ErrInvalidOperation{Message: "unknown kind " + string(op.Kind)}
	}
	return nil
}

// deepValue materializes a container into plain maps, slices and scalars.
func (s *state) deepValue(cid ContainerID) any {
	switch cid.Type() {
	case ContainerMap:
		out := make(map[string]any)
		m, ok := s.maps[cid]
		if !ok {
			return out
		}
		for key, e := range m.entries {
			if e.deleted {
				continue
			}
			out[key] = s.entryValue(e.value, e.child)
		}
		return out
	case ContainerList:
		out := make([]any, 0)
		l, ok := s.lists[cid]
		if !ok {
			return out
		}
		for _, e := range l.visible() {
			out = append(out, s.entryValue(e.value, e.child))
		}
		return out
	}
	return nil
}

func (s *state) entryValue(value any, child ContainerID) any {
	if child != "" {
		return s.deepValue(child)
	}
	return value
}

type replayOp struct {
	key opKey
	id  ID
	op  Op
}

// replay builds a fresh state from every operation of the given changes that
// vv covers (all of them when vv is nil).
func replay(changes []*Change, vv VersionVector) (*state, opKey, error) {
	ops := make([]replayOp, 0)
	for _, c := range changes {
		for i, op := range c.Ops {
			id := c.opID(i)
			if vv != nil && !vv.Includes(id) {
				continue
			}
			ops = append(ops, replayOp{key: c.opKey(i), id: id, op: op})
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].key.less(ops[j].key) })

	s := newState()
	var last opKey
	for _, r := range ops {
		if err := s.apply(r.id, r.op); err != nil {
			return nil, last, err
		}
		last = r.key
	}
	return s, last, nil
}
