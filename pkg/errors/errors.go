// Package errors carries the typed application errors that the HTTP layer
// turns into status codes and public messages.
package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeInvalidSelection  Code = "INVALID_SELECTION"
	CodeUnacceptedQuote   Code = "UNACCEPTED_QUOTE"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeQuoteExpired      Code = "QUOTE_EXPIRED"
	CodeStaleWrite        Code = "STALE_WRITE"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code is presented to API callers.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// Row order: status, retryable, details allowed, public message.
var metadataByCode = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, false, "validation failed", true},
	CodeInvalidSelection:  {http.StatusUnprocessableEntity, false, "select at least one item before placing the order", true},
	CodeUnacceptedQuote:   {http.StatusUnprocessableEntity, false, "accept the delivery fee before placing the order", true},
	CodeInvalidTransition: {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
	CodeQuoteExpired:      {http.StatusUnprocessableEntity, false, "delivery quote has expired", true},
	CodeStaleWrite:        {http.StatusConflict, false, "the delivery job has changed; refresh and try again", true},
	CodeForbidden:         {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:          {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:          {http.StatusConflict, false, "conflict detected", false},
	CodeIdempotency:       {http.StatusConflict, false, "idempotency key reused", true},
	CodeInternal:          {http.StatusInternalServerError, true, "internal server error", false},
	CodeDependency:        {http.StatusServiceUnavailable, true, "something went wrong, please try again", true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is an application failure with a stable code. Message is internal;
// callers only ever see the code's public message plus, where allowed, Details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches cause; a nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	text := string(e.code) + ": " + e.message
	if e.cause != nil {
		text += ": " + e.cause.Error()
	}
	return text
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches another *Error by code, so errors.Is(err, New(CodeNotFound, ""))
// works as a code check.
func (e *Error) Is(target error) bool {
	var other *Error
	if !stdErrors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.code == other.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether any *Error in err's chain carries code, including
// ones wrapped by fmt.Errorf between typed layers.
func HasCode(err error, code Code) bool {
	return stdErrors.Is(err, &Error{code: code})
}

// IsTransitionError groups the codes the delivery job machine uses to refuse a move.
func IsTransitionError(err error) bool {
	return HasCode(err, CodeInvalidTransition) || HasCode(err, CodeQuoteExpired)
}
