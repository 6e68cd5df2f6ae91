// Package apperr defines the typed domain failures the transport layer
// maps to response codes. Domain code returns these instead of raising
// generic errors so every caller is forced to handle each case.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindInternal covers anything unanticipated; surfaced opaquely.
	KindInternal Kind = iota
	// KindExists is a uniqueness violation on a business key.
	KindExists
	// KindNotFound means referenced id(s) do not resolve to a live row.
	KindNotFound
	// KindAuthentication is a credential mismatch at login.
	KindAuthentication
	// KindInvalidArgument is a structurally invalid request.
	KindInvalidArgument
	// KindStore means the persistence backend rejected a commit.
	KindStore
	// KindCacheUnavailable means the cache backend is unreachable.
	// Never propagated to callers; cache degrades to miss/no-op.
	KindCacheUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindExists:
		return "entity_exists"
	case KindNotFound:
		return "entity_not_found"
	case KindAuthentication:
		return "authentication_failed"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindStore:
		return "store_failure"
	case KindCacheUnavailable:
		return "cache_unavailable"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }
