// Package apperr defines the error taxonomy shared by services and handlers.
//
// Domain rejections (already checked in, wrong role, ...) are returned as *Error values with a
// Kind; anything else that escapes a service is treated as an infrastructure fault.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindUnexpected Kind = iota
	KindUnauthenticated
	KindForbidden
	KindAlreadyCheckedIn
	KindAlreadyCheckedOut
	KindNotCheckedIn
	KindInvalidConfirmation
	KindInvalidInput
	KindNotFound
	KindUpstreamFailure
)

var kindCodes = map[Kind]string{
	KindUnexpected:          "internal_error",
	KindUnauthenticated:     "unauthenticated",
	KindForbidden:           "forbidden",
	KindAlreadyCheckedIn:    "already_checked_in",
	KindAlreadyCheckedOut:   "already_checked_out",
	KindNotCheckedIn:        "not_checked_in",
	KindInvalidConfirmation: "invalid_confirmation",
	KindInvalidInput:        "invalid_input",
	KindNotFound:            "not_found",
	KindUpstreamFailure:     "upstream_failure",
}

// Code returns the stable machine code of the kind.
func (k Kind) Code() string {
	if c, ok := kindCodes[k]; ok {
		return c
	}
	return kindCodes[KindUnexpected]
}

func (k Kind) String() string {
	return k.Code()
}

// HTTPStatus maps a kind to the status code used as the secondary signal on the wire.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindAlreadyCheckedIn, KindAlreadyCheckedOut:
		return http.StatusConflict
	case KindNotCheckedIn, KindInvalidConfirmation, KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed application error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// Details carries structured data the client needs to render the failure.
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two *Error values by kind, so errors.Is(err, apperr.ErrAlreadyCheckedIn) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Kind sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated     = &Error{Kind: KindUnauthenticated}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrAlreadyCheckedIn    = &Error{Kind: KindAlreadyCheckedIn}
	ErrAlreadyCheckedOut   = &Error{Kind: KindAlreadyCheckedOut}
	ErrNotCheckedIn        = &Error{Kind: KindNotCheckedIn}
	ErrInvalidConfirmation = &Error{Kind: KindInvalidConfirmation}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrUpstreamFailure     = &Error{Kind: KindUpstreamFailure}
)

func New(kind Kind, msg string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(msg, args...)}
}

func Wrap(err error, kind Kind, msg string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(msg, args...), Err: err}
}

func Unauthenticated(msg string) *Error { return New(KindUnauthenticated, "%s", msg) }

func Forbidden(msg string) *Error { return New(KindForbidden, "%s", msg) }

func NotFound(msg string) *Error { return New(KindNotFound, "%s", msg) }

func InvalidInput(msg string) *Error { return New(KindInvalidInput, "%s", msg) }

// Upstream wraps an infrastructure fault. The message stays generic because it reaches the client.
func Upstream(err error, msg string) *Error {
	return Wrap(err, KindUpstreamFailure, "%s", msg)
}

// WithDetails attaches structured details and returns the same error.
func (e *Error) WithDetails(kv map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		e.Details[k] = v
	}
	return e
}

// KindOf returns the kind of err, KindUnexpected for untyped errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}

// IsDomain reports whether err is an expected rejection rather than an infrastructure fault.
func IsDomain(err error) bool {
	switch KindOf(err) {
	case KindUnexpected, KindUpstreamFailure:
		return false
	default:
		return true
	}
}
