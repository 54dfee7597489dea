package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies rejections so the HTTP boundary can map each to
// a status code without string matching.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindValidation: bad input or a failed precondition (wrong role,
	// wrong lifecycle phase, duplicate request, score out of range).
	KindValidation
	// KindNotFound: the referenced entity does not exist.
	KindNotFound
	// KindConflict: a lost race on a compare-and-set transition; the
	// caller may re-fetch and retry, the core does not.
	KindConflict
	// KindDependency: an external collaborator failed and no safe
	// fallback exists for the operation.
	KindDependency
)

// Error carries a kind plus a specific human-readable reason telling
// the caller which precondition failed.
type Error struct {
	Kind    ErrorKind
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

func NewValidation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewNotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func NewConflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NewDependency(message string, err error) error {
	return &Error{Kind: KindDependency, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, KindUnknown otherwise.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
