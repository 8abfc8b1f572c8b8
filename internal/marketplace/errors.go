package marketplace

import (
	"errors"
	"fmt"

	"github.com/hongminglow/bountyboard/internal/storage"
)

// Kind classifies a business failure for the transport layer.
type Kind string

const (
	KindInvalid      Kind = "invalid"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindUnavailable  Kind = "unavailable"
)

// Error is a user-facing failure of a marketplace action.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(msg string) error   { return &Error{Kind: KindInvalid, Message: msg} }
func forbidden(msg string) error { return &Error{Kind: KindForbidden, Message: msg} }
func notFound(msg string) error  { return &Error{Kind: KindNotFound, Message: msg} }
func conflict(msg string) error  { return &Error{Kind: KindConflict, Message: msg} }

func unavailable(msg string, err error) error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}

// KindOf returns the kind of err, or "" for unexpected errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// storeErr maps storage sentinels onto business errors; anything else is
// returned unchanged and surfaces as an internal error.
func storeErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return notFound(what + " not found")
	case errors.Is(err, storage.ErrConflict):
		return conflict(what + " was changed by someone else; reload and try again")
	case errors.Is(err, storage.ErrAlreadyExists):
		return conflict(what + " already exists")
	}
	return err
}
