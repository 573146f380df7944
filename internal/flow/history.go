package flow

import "flowsync/pkg/crdt"

// History is the ordered list of frontiers a view can scrub through.
// Entry 0 is the seeded state and the last entry is the latest one recorded.
type History struct {
	entries []crdt.Frontiers
}

// Len returns the number of recorded entries.
func (h *History) Len() int {
	return len(h.entries)
}

// At returns the frontier recorded at index i.
func (h *History) At(i int) crdt.Frontiers {
	return h.entries[i].Clone()
}

// Last returns the most recent entry, or nil when nothing was recorded.
func (h *History) Last() crdt.Frontiers {
	if len(h.entries) == 0 {
		return nil
	}
	return h.entries[len(h.entries)-1].Clone()
}

// Append records f.
func (h *History) Append(f crdt.Frontiers) {
	h.entries = append(h.entries, f.Clone())
}

// AppendIfNew records f unless it equals the last entry, and reports whether it did.
func (h *History) AppendIfNew(f crdt.Frontiers) bool {
	if len(h.entries) > 0 && h.entries[len(h.entries)-1].Equal(f) {
		return false
	}
	h.Append(f)
	return true
}
