// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"net/http"
)

// New creates a TetherError for the given code. details may be empty.
func New(code ErrorCode, details string) *TetherError {
	def, ok := errorDefinitions[code]
	if !ok {
		return &TetherError{
			Code:       code,
			Domain:     DomainMisc,
			Message:    "Unknown error",
			Details:    details,
			HTTPStatus: http.StatusInternalServerError,
		}
	}
	return &TetherError{
		Code:       code,
		Domain:     def.domain,
		Message:    def.message,
		Details:    details,
		HTTPStatus: def.httpStatus,
	}
}

// Wrap converts err into a TetherError with the given code, keeping err as the
// cause. Wrapping an existing TetherError keeps its metadata.
func Wrap(err error, code ErrorCode) *TetherError {
	if err == nil {
		return New(code, "")
	}
	te := New(code, err.Error())
	te.cause = err

	var inner *TetherError
	if stderrors.As(err, &inner) && len(inner.Metadata) > 0 {
		te.Metadata = maps.Clone(inner.Metadata)
	}
	return te
}

// WithMetadata attaches a key/value pair and returns the receiver for chaining.
func (e *TetherError) WithMetadata(key, value string) *TetherError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

func (e *TetherError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s-%d] %s: %s", e.Domain, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s-%d] %s", e.Domain, e.Code, e.Message)
}

func (e *TetherError) Unwrap() error {
	return e.cause
}

// Is matches another TetherError by code so errors.Is works against
// sentinel values built with New.
func (e *TetherError) Is(target error) bool {
	t, ok := target.(*TetherError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsCode reports whether any TetherError in err's chain has the given code.
func IsCode(err error, code ErrorCode) bool {
	var te *TetherError
	for err != nil {
		if !stderrors.As(err, &te) {
			return false
		}
		if te.Code == code {
			return true
		}
		err = te.cause
	}
	return false
}

// As is a passthrough to the standard library so callers only import one
// errors package.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is a passthrough to the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
