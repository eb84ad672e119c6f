package chartcrafter

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a chart or blob does not exist
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when a credential is missing or wrong
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStorage is returned when the object store fails
	ErrStorage = errors.New("storage failure")
	// ErrRender is returned when the renderer fails
	ErrRender = errors.New("render failure")
	// ErrMalformedRecord is returned when a stored record cannot be decoded
	ErrMalformedRecord = errors.New("malformed record")
)

// Validation failures, checked in this order by Create.
var (
	ErrMissingFields       = fmt.Errorf("%w: missing required fields", ErrInvalidInput)
	ErrInvalidExpiryFormat = fmt.Errorf("%w: invalid expiry format", ErrInvalidInput)
	ErrExpiryOutOfRange    = fmt.Errorf("%w: expiry out of range", ErrInvalidInput)
)

// Authorization failures.
var (
	ErrCredentialRequired = fmt.Errorf("%w: credential required", ErrUnauthorized)
	ErrInvalidCredential  = fmt.Errorf("%w: invalid credential", ErrUnauthorized)
)
