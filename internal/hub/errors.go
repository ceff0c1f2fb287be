package hub

import "errors"

// ErrKind classifies an error that is reported back to an endpoint.
type ErrKind string

// Kinds of client facing errors.
const (
	ErrValidation ErrKind = "validation"
	ErrOffline    ErrKind = "offline"
	ErrNotInRoom  ErrKind = "not_in_room"
	ErrCapacity   ErrKind = "capacity"
	ErrNotMember  ErrKind = "not_member"
)

// Error is an error that is shown to the endpoint that caused it. It is
// never broadcast.
type Error struct {
	Kind    ErrKind `json:"kind" msgpack:"kind"`
	Message string  `json:"message" msgpack:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrKind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the kind of err or an empty kind if err is not an *Error.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
