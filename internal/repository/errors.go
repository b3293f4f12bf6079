package repository

import "errors"

var (
	// ErrNotFound is returned when a conditional write matched no row.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned on primary key conflicts.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrOptimisticLock is returned when a versioned or status-conditioned
	// write lost against a concurrent change.
	ErrOptimisticLock = errors.New("optimistic lock failure: record was modified")
)
