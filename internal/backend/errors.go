// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"errors"
	"net/http"
)

// Error codes returned by the backend.
const (
	CodeNoRows             = "PGRST116"
	CodeUndefinedTable     = "42P01"
	CodeUndefinedColumn    = "42703"
	CodeUniqueViolation    = "23505"
	CodeInsufficientAccess = "42501"
	CodeMissingFilter      = "21000"

	CodeInvalidCredentials = "invalid_credentials"
	CodeEmailNotConfirmed  = "email_not_confirmed"
	CodeUserExists         = "user_already_exists"
	CodeWeakPassword       = "weak_password"
	CodeValidation         = "validation_failed"
	CodeLinkExpired        = "otp_expired"

	CodeBucketNotFound = "bucket_not_found"
	CodeDuplicate      = "duplicate"
	CodeTooLarge       = "entity_too_large"
	CodeInvalidKey     = "invalid_key"
)

// Error is a failure reported by the backend. Its message is meant to be
// shown to the user as-is.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrNotFound is returned by Query.Single when no row matches.
var ErrNotFound = &Error{
	Code:    CodeNoRows,
	Message: "JSON object requested, multiple (or no) rows returned",
	Status:  http.StatusNotAcceptable,
}

// ErrorCode returns the backend code carried by err, or "".
func ErrorCode(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsNotFound reports whether err is the single-row "no rows" response.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsMissingTable reports whether err says the table does not exist.
func IsMissingTable(err error) bool {
	return ErrorCode(err) == CodeUndefinedTable
}
