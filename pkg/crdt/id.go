package crdt

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// SessionID identifies a single document replica (a peer).
// It is implemented as a UUID v7 which provides time-ordered values.
type SessionID uuid.UUID

// NilSessionID is the zero value for SessionID.
var NilSessionID SessionID

// NewSessionID creates a new SessionID using UUID v7.
// It panics if the UUID cannot be created.
func NewSessionID() SessionID {
	const retry = 3

	var lastErr error
	for i := 0; i < retry; i++ {
		id, err := uuid.NewV7()
		if err == nil {
			return SessionID(id)
		}
		lastErr = err
	}

	panic(lastErr)
}

// String returns the string representation of the SessionID.
func (s SessionID) String() string {
	return uuid.UUID(s).String()
}

// Compare compares two SessionIDs lexicographically.
func (s SessionID) Compare(other SessionID) int {
	return bytes.Compare(s[:], other[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
// It also makes SessionID usable as a JSON object key.
func (s SessionID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(s).String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (s *SessionID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}
	*s = SessionID(u)
	return nil
}

// ID is a globally unique operation identifier.
// Counters are dense per session and start at 1, so the zero ID never names an operation.
type ID struct {
	SID     SessionID `json:"sid"`
	Counter uint64    `json:"cnt"`
}

// NilID is the zero value for ID. As a list origin it means "insert at the head".
var NilID ID

// IsNil reports whether the id is the zero ID.
func (id ID) IsNil() bool {
	return id.Counter == 0
}

// Compare orders ids by session first and counter second.
func (id ID) Compare(other ID) int {
	if c := id.SID.Compare(other.SID); c != 0 {
		return c
	}
	switch {
	case id.Counter < other.Counter:
		return -1
	case id.Counter > other.Counter:
		return 1
	}
	return 0
}

// String returns a compact "counter@session" form.
func (id ID) String() string {
	return fmt.Sprintf("%d@%s", id.Counter, id.SID)
}

// opKey is the total order every replica replays operations in.
// Lamport clocks respect causality, so the order is a linear extension of the causal graph.
type opKey struct {
	lamport uint64
	sid     SessionID
	counter uint64
}

func (k opKey) less(other opKey) bool {
	if k.lamport != other.lamport {
		return k.lamport < other.lamport
	}
	if c := k.sid.Compare(other.sid); c != 0 {
		return c < 0
	}
	return k.counter < other.counter
}
