package model

import "errors"

// Error categories shared by every layer. Wrap them with fmt.Errorf("%w: ...")
// and match with errors.Is.
var (
	// ErrInvalidArgument is returned for malformed or missing required input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when a business rule forbids the operation.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned for unknown challenges or identities.
	ErrNotFound = errors.New("not found")
	// ErrPersistence is returned when a storage write fails.
	ErrPersistence = errors.New("persistence failure")
)
