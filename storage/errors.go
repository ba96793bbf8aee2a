package storage

import (
	"errors"
	"fmt"

	"github.com/rickKoch/actorstate/actor"
)

var (
	// ErrInvalidReference is returned for a malformed actor reference.
	ErrInvalidReference = actor.ErrInvalidReference
	// ErrNotConnected is returned by data operations outside the started state.
	ErrNotConnected = errors.New("actorstate: not connected")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("actorstate: already started")
	// ErrConnection covers establishing or using the store connection,
	// including a malformed host list.
	ErrConnection = errors.New("actorstate: connection error")
	// ErrDeserialization is returned when a stored document cannot be merged
	// into the state object.
	ErrDeserialization = errors.New("actorstate: cannot merge stored state")
	// ErrSerialization is returned when a state object cannot be encoded.
	ErrSerialization = errors.New("actorstate: cannot encode state")
)

// Error carries the operation and actor reference a failure belongs to.
// errors.Is matches Kind; errors.As and Unwrap reach the cause.
type Error struct {
	Op   string
	Ref  string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Ref != "" {
		msg += " " + e.Ref
	}
	if e.Kind != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Kind)
	}
	if e.Err != nil && e.Err != e.Kind {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return e.Kind != nil && target == e.Kind }

func opError(op string, ref *actor.Ref, kind, err error) error {
	e := &Error{Op: op, Kind: kind, Err: err}
	if ref != nil {
		e.Ref = ref.String()
	}
	return e
}
