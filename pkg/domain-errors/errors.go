// Package domainerrors provides coded errors for the registry domain.
//
// Two families of codes live here. Registry codes (100-120) are the stable
// numeric taxonomy the registry's callers depend on; their values must never
// change. Generic codes cover transport and infrastructure concerns that are
// not part of that contract.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Registry codes are wire-stable.
type Code int

// Registry error taxonomy. Values are load-bearing for callers.
const (
	CodeNotAuthorized      Code = 100
	CodeInvalidBatchID     Code = 101
	CodeInvalidOrigin      Code = 102
	CodeInvalidHash        Code = 103
	CodeInvalidCertID      Code = 104
	CodeInvalidTimestamp   Code = 105
	CodeBatchAlreadyExists Code = 106
	CodeBatchNotFound      Code = 107
	CodeInvalidStatus      Code = 108
	CodeAuthorityNotBound  Code = 109
	CodeInvalidProductType Code = 110
	CodeInvalidQuantity    Code = 111
	CodeUpdateNotAllowed   Code = 112
	CodeInvalidUpdateParam Code = 113
	CodeMaxBatchesExceeded Code = 114
	CodeInvalidLocation    Code = 115
	CodeInvalidCurrency    Code = 116
	CodeInvalidExpiry      Code = 117
	CodeInvalidOwner       Code = 118
	CodeInvalidDescription Code = 119
	CodeInvalidPrice       Code = 120
)

// Generic codes for failures outside the registry taxonomy.
const (
	CodeInvalidInput Code = 1001
	CodeConflict     Code = 1002
	CodeNotFound     Code = 1003
	CodeUnauthorized Code = 1004
	CodeInternal     Code = 1005
)

// Error is a coded domain error. It wraps an optional cause so errors.Is and
// errors.As keep working through service layers.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(cause error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err. Errors without a code report
// CodeInternal so transport layers always have something to map.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsRegistryCode reports whether the code belongs to the stable 100-120
// registry taxonomy.
func IsRegistryCode(code Code) bool {
	return code >= CodeNotAuthorized && code <= CodeInvalidPrice
}
