package crdt

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrDetached is returned when a mutation is attempted on a checked-out historical view.
	ErrDetached = errors.New("document is detached")

	// ErrDecode is returned when an exported snapshot or update cannot be parsed.
	ErrDecode = errors.New("malformed document encoding")

	// ErrUnknownFrontiers is returned when a checkout names operations the document has never seen.
	ErrUnknownFrontiers = errors.New("frontiers reference unknown operations")
)

// ErrIndexOutOfRange is returned when a list position is outside the visible elements.
type ErrIndexOutOfRange struct {
	Index int
	Len   int
}

func (e ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index %d out of range for list of length %d", e.Index, e.Len)
}

// ErrContainerType is returned when a value is not the container kind the caller asked for.
type ErrContainerType struct {
	Want ContainerType
	Got  string
}

func (e ErrContainerType) Error() string {
	return fmt.Sprintf("expected %s container, got %s", e.Want, e.Got)
}

// ErrInvalidValue is returned when a value cannot be stored in the document.
type ErrInvalidValue struct {
	Message string
}

func (e ErrInvalidValue) Error() string {
	return fmt.Sprintf("invalid value: %s", e.Message)
}

// ErrInvalidOperation is returned when an operation cannot be integrated into the state.
type ErrInvalidOperation struct {
	Message string
}

func (e ErrInvalidOperation) Error() string {
	return fmt.Sprintf("invalid operation: %s", e.Message)
}
