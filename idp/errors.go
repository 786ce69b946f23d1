package idp

import (
	"errors"
	"fmt"
)

// Code discriminates provider failures.
type Code string

const (
	CodeInvalidCredential    Code = "auth/invalid-credential"
	CodeEmailAlreadyInUse    Code = "auth/email-already-in-use"
	CodeUserNotFound         Code = "auth/user-not-found"
	CodeNetworkRequestFailed Code = "auth/network-request-failed"
	CodeInvalidCustomToken   Code = "auth/invalid-custom-token"
	CodeWeakPassword         Code = "auth/weak-password"
	CodeInvalidEmail         Code = "auth/invalid-email"
)

// Error is a provider failure carrying its code and optional cause.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code, so callers can write
// errors.Is(err, &idp.Error{Code: idp.CodeInvalidCredential}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code, err error) *Error {
	return &Error{Code: code, Err: err}
}

// CodeOf extracts the code from err, or "" when err is not a provider error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
