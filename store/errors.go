package store

import "errors"

var (
	// ErrNotFound is returned when an entity doesn't exist.
	ErrNotFound = errors.New("murmur: entity not found")

	// ErrAlreadyExists is returned when attempting to create an entity with an existing ID.
	ErrAlreadyExists = errors.New("murmur: entity already exists")

	// ErrConcurrentModification is returned when optimistic lock fails (version mismatch).
	ErrConcurrentModification = errors.New("murmur: entity was modified concurrently")

	// ErrInvalidQuery is returned when a query names a field outside the kind's schema.
	ErrInvalidQuery = errors.New("murmur: invalid query")

	// ErrInvalidEdge is returned when an edge operation targets a field that is not a reference sequence.
	ErrInvalidEdge = errors.New("murmur: invalid edge operation")
)
