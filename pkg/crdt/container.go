package crdt

// List is a handle to a list container. Reads observe the checked-out state
// while the document is detached.
type List struct {
	doc *Document
	id  ContainerID
}

// ID returns the container id.
func (l *List) ID() ContainerID {
	return l.id
}

// Len returns the number of visible elements.
func (l *List) Len() int {
	l.doc.mu.RLock()
	defer l.doc.mu.RUnlock()

	ls, ok := l.doc.view().lists[l.id]
	if !ok {
		return 0
	}
	return len(ls.visible())
}

// Get returns the element at index: a plain value, or a *Map / *List handle
// for container elements.
func (l *List) Get(index int) (any, error) {
	l.doc.mu.RLock()
	defer l.doc.mu.RUnlock()

	e, err := l.elemAt(l.doc.view(), index)
	if err != nil {
		return nil, err
	}
	return l.doc.handle(e.value, e.child), nil
}

// GetMap returns the map container at index.
func (l *List) GetMap(index int) (*Map, error) {
	v, err := l.Get(index)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Map)
	if !ok {
		return nil, ErrContainerType{Want: ContainerMap, Got: describe(v)}
	}
	return m, nil
}

// Value returns the materialized content of the list.
func (l *List) Value() []any {
	l.doc.mu.RLock()
	defer l.doc.mu.RUnlock()

	return l.doc.view().deepValue(l.id).([]any)
}

// Insert inserts a plain value at index.
func (l *List) Insert(index int, value any) error {
	v, err := normalizeValue(value)
	if err != nil {
		return err
	}

	l.doc.mu.Lock()
	defer l.doc.mu.Unlock()

	_, err = l.insertLocked(index, Op{Value: v})
	return err
}

// Push appends a plain value.
func (l *List) Push(value any) error {
	return l.Insert(l.Len(), value)
}

// InsertMap inserts a new map container at index and returns it.
func (l *List) InsertMap(index int) (*Map, error) {
	l.doc.mu.Lock()
	defer l.doc.mu.Unlock()

	id, err := l.insertLocked(index, Op{Child: ContainerMap})
	if err != nil {
		return nil, err
	}
	return &Map{doc: l.doc, id: childContainerID(id, ContainerMap)}, nil
}

// InsertList inserts a new list container at index and returns it.
func (l *List) InsertList(index int) (*List, error) {
	l.doc.mu.Lock()
	defer l.doc.mu.Unlock()

	id, err := l.insertLocked(index, Op{Child: ContainerList})
	if err != nil {
		return nil, err
	}
	return &List{doc: l.doc, id: childContainerID(id, ContainerList)}, nil
}

func (l *List) insertLocked(index int, op Op) (ID, error) {
	if l.doc.detached != nil {
		return NilID, ErrDetached
	}

	after := NilID
	if index != 0 {
		e, err := l.elemAt(l.doc.latest, index-1)
		if err != nil {
			return NilID, ErrIndexOutOfRange{Index: index, Len: l.lenLocked()}
		}
		after = e.id
	}

	op.Container = l.id
	op.Kind = OpListInsert
	op.After = after
	return l.doc.localOp(op)
}

// Delete removes n visible elements starting at index.
func (l *List) Delete(index, n int) error {
	l.doc.mu.Lock()
	defer l.doc.mu.Unlock()

	if l.doc.detached != nil {
		return ErrDetached
	}

	size := l.lenLocked()
	if index < 0 || n < 0 || index+n > size {
		return ErrIndexOutOfRange{Index: index + n, Len: size}
	}

	ls := l.doc.latest.listOf(l.id)
	targets := ls.visible()[index : index+n]
	for _, e := range targets {
		if _, err := l.doc.localOp(Op{Container: l.id, Kind: OpListDelete, Target: e.id}); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) lenLocked() int {
	ls, ok := l.doc.latest.lists[l.id]
	if !ok {
		return 0
	}
	return len(ls.visible())
}

func (l *List) elemAt(s *state, index int) (*listElem, error) {
	ls, ok := s.lists[l.id]
	if !ok {
		return nil, ErrIndexOutOfRange{Index: index, Len: 0}
	}
	visible := ls.visible()
	if index < 0 || index >= len(visible) {
		return nil, ErrIndexOutOfRange{Index: index, Len: len(visible)}
	}
	return visible[index], nil
}

// Map is a handle to a map container. Reads observe the checked-out state
// while the document is detached.
type Map struct {
	doc *Document
	id  ContainerID
}

// ID returns the container id.
func (m *Map) ID() ContainerID {
	return m.id
}

// Get returns the value stored under key: a plain value, or a *Map / *List handle.
func (m *Map) Get(key string) (any, bool) {
	m.doc.mu.RLock()
	defer m.doc.mu.RUnlock()

	ms, ok := m.doc.view().maps[m.id]
	if !ok {
		return nil, false
	}
	e, ok := ms.entries[key]
	if !ok || e.deleted {
		return nil, false
	}
	return m.doc.handle(e.value, e.child), true
}

// GetMap returns the map container stored under key.
func (m *Map) GetMap(key string) (*Map, error) {
	v, ok := m.Get(key)
	if !ok {
		return nil, ErrContainerType{Want: ContainerMap, Got: "nothing"}
	}
	child, ok := v.(*Map)
	if !ok {
		return nil, ErrContainerType{Want: ContainerMap, Got: describe(v)}
	}
	return child, nil
}

// Keys returns the keys currently present.
func (m *Map) Keys() []string {
	m.doc.mu.RLock()
	defer m.doc.mu.RUnlock()

	ms, ok := m.doc.view().maps[m.id]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(ms.entries))
	for key, e := range ms.entries {
		if !e.deleted {
			keys = append(keys, key)
		}
	}
	return keys
}

// Value returns the materialized content of the map.
func (m *Map) Value() map[string]any {
	m.doc.mu.RLock()
	defer m.doc.mu.RUnlock()

	return m.doc.view().deepValue(m.id).(map[string]any)
}

// Set stores a plain value under key.
func (m *Map) Set(key string, value any) error {
	v, err := normalizeValue(value)
	if err != nil {
		return err
	}

	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()

	_, err = m.doc.localOp(Op{Container: m.id, Kind: OpMapSet, Key: key, Value: v})
	return err
}

// SetMap stores a new map container under key and returns it.
func (m *Map) SetMap(key string) (*Map, error) {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()

	id, err := m.doc.localOp(Op{Container: m.id, Kind: OpMapSet, Key: key, Child: ContainerMap})
	if err != nil {
		return nil, err
	}
	return &Map{doc: m.doc, id: childContainerID(id, ContainerMap)}, nil
}

// SetList stores a new list container under key and returns it.
func (m *Map) SetList(key string) (*List, error) {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()

	id, err := m.doc.localOp(Op{Container: m.id, Kind: OpMapSet, Key: key, Child: ContainerList})
	if err != nil {
		return nil, err
	}
	return &List{doc: m.doc, id: childContainerID(id, ContainerList)}, nil
}

// Delete removes key from the map.
func (m *Map) Delete(key string) error {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()

	_, err := m.doc.localOp(Op{Container: m.id, Kind: OpMapDelete, Key: key})
	return err
}

func (d *Document) handle(value any, child ContainerID) any {
	switch child.Type() {
	case ContainerMap:
		if child != "" {
			return &Map{doc: d, id: child}
		}
	case ContainerList:
		if child != "" {
			return &List{doc: d, id: child}
		}
	}
	return value
}

func describe(v any) string {
	switch v.(type) {
	case *Map:
		return string(ContainerMap)
	case *List:
		return string(ContainerList)
	case nil:
		return "null"
	}
	return "value"
}
