// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package apperrors classifies failures of the hiking clubs backend.

Business-rule violations (validation, not found, conflict) are reported to the
caller as a failed operation with a message. Everything else is an I/O
failure: it is logged and surfaces as an internal server error.
*/
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an error
type Kind string

// all error kinds
const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInconsistent Kind = "inconsistent"
	KindIO           Kind = "io"
)

// Code identifies the concrete failure within a kind
type Code string

// all error codes
const (
	InvalidCondition           Code = "InvalidCondition"
	InvalidAttribute           Code = "InvalidAttribute"
	NoValidAttributes          Code = "NoValidAttributes"
	MissingField               Code = "MissingField"
	InvalidInput               Code = "InvalidInput"
	AlreadyExists              Code = "AlreadyExists"
	ClubNotFound               Code = "ClubNotFound"
	NotFound                   Code = "NotFound"
	ClubHasMembers             Code = "ClubHasMembers"
	ClassificationInsertFailed Code = "ClassificationInsertFailed"
	InconsistentState          Code = "InconsistentState"
	Unavailable                Code = "Unavailable"
)

// Error is a classified error
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code. A target with
// an empty code matches on kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return e.Kind == t.Kind
	}
	return e.Code == t.Code
}

func newError(kind Kind, code Code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation returns a validation error
func Validation(code Code, format string, args ...interface{}) *Error {
	return newError(KindValidation, code, format, args...)
}

// NotFoundf returns a not-found error
func NotFoundf(code Code, format string, args ...interface{}) *Error {
	return newError(KindNotFound, code, format, args...)
}

// Conflict returns a conflict error
func Conflict(code Code, format string, args ...interface{}) *Error {
	return newError(KindConflict, code, format, args...)
}

// Inconsistent returns an error for a state that the invariants should rule out
func Inconsistent(format string, args ...interface{}) *Error {
	return newError(KindInconsistent, InconsistentState, format, args...)
}

// IO wraps err as an I/O failure
func IO(code Code, err error, format string, args ...interface{}) *Error {
	e := newError(KindIO, code, format, args...)
	e.Err = err
	return e
}

// KindOf returns the kind of err. Unclassified errors are I/O errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}

// CodeOf returns the code of err, or the empty code for unclassified errors
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsBusiness returns true if err is a business-rule violation, i.e. something
// the caller can act on, rather than an internal failure
func IsBusiness(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindConflict:
		return true
	}
	return false
}

// HTTPStatus maps err onto a response status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a message that is safe to show to a client. The wrapped
// driver error is never part of it.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	return e.Message
}
