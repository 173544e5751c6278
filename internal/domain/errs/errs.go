// Package errs defines the recoverable, user-facing error kinds returned by
// the group-purchase core. Infrastructure failures are plain wrapped errors
// and never carry a Kind.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a user-facing failure.
type Kind string

const (
	KindInvalidTransition      Kind = "INVALID_TRANSITION"
	KindCapacityExceeded       Kind = "CAPACITY_EXCEEDED"
	KindDuplicateParticipation Kind = "DUPLICATE_PARTICIPATION"
	KindInsufficientTokens     Kind = "INSUFFICIENT_TOKENS"
	KindInvalidDecisionContext Kind = "INVALID_DECISION_CONTEXT"
	KindNotReportable          Kind = "NOT_REPORTABLE"
	KindEditLimitExceeded      Kind = "EDIT_LIMIT_EXCEEDED"
	KindDuplicateObjection     Kind = "DUPLICATE_OBJECTION"
	KindNotAuthorized          Kind = "NOT_AUTHORIZED"
	KindNotFound               Kind = "NOT_FOUND"
	KindValidation             Kind = "VALIDATION"
	KindProfileIncomplete      Kind = "PROFILE_INCOMPLETE"
)

// Error is a typed domain failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so callers can compare against the
// sentinel values below regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels usable with errors.Is.
var (
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition, Message: "operation is not valid in the current group-purchase state"}
	ErrCapacityExceeded       = &Error{Kind: KindCapacityExceeded, Message: "group purchase has reached its maximum number of participants"}
	ErrDuplicateParticipation = &Error{Kind: KindDuplicateParticipation, Message: "buyer already participates in this group purchase"}
	ErrInsufficientTokens     = &Error{Kind: KindInsufficientTokens, Message: "no bid tokens available"}
	ErrInvalidDecisionContext = &Error{Kind: KindInvalidDecisionContext, Message: "decision is not accepted in the current selection phase"}
	ErrNotReportable          = &Error{Kind: KindNotReportable, Message: "group purchase is not reportable"}
	ErrEditLimitExceeded      = &Error{Kind: KindEditLimitExceeded, Message: "edit limit exceeded"}
	ErrDuplicateObjection     = &Error{Kind: KindDuplicateObjection, Message: "an objection already exists for this report"}
	ErrNotAuthorized          = &Error{Kind: KindNotAuthorized, Message: "not authorized"}
	ErrNotFound               = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation             = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrProfileIncomplete      = &Error{Kind: KindProfileIncomplete, Message: "profile must be completed first"}
)

// New returns an error of the given kind with a specific message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func InvalidTransition(format string, args ...interface{}) *Error {
	return New(KindInvalidTransition, format, args...)
}

func NotFound(what string) *Error {
	return New(KindNotFound, "%s not found", what)
}

func NotAuthorized(format string, args ...interface{}) *Error {
	return New(KindNotAuthorized, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}
