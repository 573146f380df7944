package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrReplicaNotFound is returned for replica ids other than "a" and "b"
	ErrReplicaNotFound = errors.New("replica not found")

	// ErrNodeNotFound is returned when a gesture names a node the editor does not show
	ErrNodeNotFound = errors.New("node not found")

	// ErrEdgeNotFound is returned when a gesture names an edge the editor does not show
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrSnapshotNotFound is returned by repositories for unknown snapshot ids
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// ErrVersionOutOfRange is returned when a scrub target is outside [0, max]
type ErrVersionOutOfRange struct {
	Version int
	Max     int
}

func (e ErrVersionOutOfRange) Error() string {
	return fmt.Sprintf("version %d out of range [0, %d]", e.Version, e.Max)
}

// ErrInvalidPatch is returned when a node merge patch cannot be applied
type ErrInvalidPatch struct {
	Reason string
}

func (e ErrInvalidPatch) Error() string {
	return "invalid node patch: " + e.Reason
}
