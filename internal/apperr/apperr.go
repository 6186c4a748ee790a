// Package apperr defines the error kinds handlers translate into HTTP
// statuses. Messages are user-facing (Italian, as shown in the admin UI).
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindConfiguration
)

// GenericMessage is returned for any failure that is not an *Error.
const GenericMessage = "Errore interno del server"

// Error is a classified, user-presentable error.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
}

func (e *Error) Error() string { return e.Message }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Validation builds a 400 error carrying per-field messages.
func Validation(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func Conflict(msg string) *Error { return New(KindConflict, msg) }

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Status maps err to an HTTP status code. Unclassified errors are 500.
func Status(err error) int {
	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
