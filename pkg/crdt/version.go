package crdt

import (
	"sort"
	"strings"
)

// VersionVector tracks, per session, the last operation counter a document has seen.
type VersionVector map[SessionID]uint64

// NewVersionVector creates an empty version vector.
func NewVersionVector() VersionVector {
	return make(VersionVector)
}

// Get returns the last known counter for the session, or 0.
func (vv VersionVector) Get(sid SessionID) uint64 {
	return vv[sid]
}

// Includes reports whether the operation with the given id is covered by the vector.
func (vv VersionVector) Includes(id ID) bool {
	return id.Counter <= vv[id.SID]
}

// Extend raises the session's counter to id.Counter if it is higher.
func (vv VersionVector) Extend(id ID) {
	if id.Counter > vv[id.SID] {
		vv[id.SID] = id.Counter
	}
}

// Merge raises every counter to the maximum of both vectors.
func (vv VersionVector) Merge(other VersionVector) {
	for sid, counter := range other {
		if counter > vv[sid] {
			vv[sid] = counter
		}
	}
}

// Descends reports whether vv has seen everything other has seen.
func (vv VersionVector) Descends(other VersionVector) bool {
	for sid, counter := range other {
		if vv[sid] < counter {
			return false
		}
	}
	return true
}

// Equal reports whether both vectors cover exactly the same operations.
func (vv VersionVector) Equal(other VersionVector) bool {
	return vv.Descends(other) && other.Descends(vv)
}

// Clone returns a copy of the vector.
func (vv VersionVector) Clone() VersionVector {
	out := make(VersionVector, len(vv))
	for sid, counter := range vv {
		out[sid] = counter
	}
	return out
}

// Frontiers is the set of operation ids that have no successor in a causal history.
// It is kept sorted so two frontiers naming the same history compare equal.
type Frontiers []ID

// NewFrontiers builds a sorted, de-duplicated frontier from the given ids.
func NewFrontiers(ids ...ID) Frontiers {
	out := make(Frontiers, 0, len(ids))
	for _, id := range ids {
		if id.IsNil() {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Compare(out[j]) < 0 })

	dedup := make(Frontiers, 0, len(out))
	for _, id := range out {
		if n := len(dedup); n > 0 && dedup[n-1] == id {
			continue
		}
		dedup = append(dedup, id)
	}
	return dedup
}

// Equal reports whether both frontiers name the same ids.
func (f Frontiers) Equal(other Frontiers) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the frontier.
func (f Frontiers) Clone() Frontiers {
	if f == nil {
		return Frontiers{}
	}
	out := make(Frontiers, len(f))
	copy(out, f)
	return out
}

// String returns a readable form such as "[3@sid-a 7@sid-b]".
func (f Frontiers) String() string {
	parts := make([]string, len(f))
	for i, id := range f {
		parts[i] = id.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// advance drops the parents of a new change from the frontier and adds its last id.
func (f Frontiers) advance(last ID, parents Frontiers) Frontiers {
	next := make([]ID, 0, len(f)+1)
	for _, id := range f {
		covered := false
		for _, p := range parents {
			if id == p {
				covered = true
				break
			}
		}
		// A change always succeeds the previous operation of its own session.
		if id.SID == last.SID && id.Counter < last.Counter {
			covered = true
		}
		if !covered {
			next = append(next, id)
		}
	}
	next = append(next, last)
	return NewFrontiers(next...)
}
