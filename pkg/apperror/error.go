package apperror

import (
	"errors"
	"net/http"
)

// Kinds. Every *Error unwraps to exactly one of these.
var (
	ErrValidation        = errors.New("validation error")
	ErrBadRequest        = errors.New("bad request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeBadRequest        Code = "BAD_REQUEST"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInternal          Code = "INTERNAL"
)

type Error struct {
	Kind    error
	Message string
	Details any
	cause   error
}

func New(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(msg string) *Error        { return New(ErrValidation, msg) }
func BadRequest(msg string) *Error        { return New(ErrBadRequest, msg) }
func NotFound(msg string) *Error          { return New(ErrNotFound, msg) }
func Conflict(msg string) *Error          { return New(ErrConflict, msg) }
func Unauthorized(msg string) *Error      { return New(ErrUnauthorized, msg) }
func Forbidden(msg string) *Error         { return New(ErrForbidden, msg) }
func InsufficientStock(msg string) *Error { return New(ErrInsufficientStock, msg) }

// WithDetails returns a copy carrying details. The copy still matches the
// original under errors.Is.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap returns a copy that also unwraps to cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

// Classify returns the HTTP status and envelope code for err.
func Classify(err error) (int, Code) {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, ErrInsufficientStock):
		return http.StatusBadRequest, CodeInsufficientStock
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}
