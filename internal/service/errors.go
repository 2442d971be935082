package service

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced by BookingService. Handlers map these onto
// HTTP status codes; everything unwrapped falls through as internal.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("conflict")
	ErrPolicyViolation = errors.New("policy violation")
	ErrInternal        = errors.New("internal error")
)

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func conflict(reason string) error {
	return fmt.Errorf("%w: %s", ErrConflict, reason)
}

func policyViolation(reason string) error {
	return fmt.Errorf("%w: %s", ErrPolicyViolation, reason)
}

func internal(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}
