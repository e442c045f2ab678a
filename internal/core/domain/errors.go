package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed or out-of-bounds input before any
// computation or store access happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError signals that a referenced employee or subproject has no
// resolvable location.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// StoreUnavailableError signals that the cache or audit store could not be
// reached. Cache unavailability degrades to direct computation; audit
// unavailability fails the calculation.
type StoreUnavailableError struct {
	Store string
	Err   error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("%s store unavailable: %v", e.Store, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsStoreUnavailable reports whether err is (or wraps) a StoreUnavailableError.
func IsStoreUnavailable(err error) bool {
	var sue *StoreUnavailableError
	return errors.As(err, &sue)
}
