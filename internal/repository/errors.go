package repository

import "errors"

var (
	// ErrNotFound is returned by writes that matched no document.
	// Reads return (nil, nil) for a missing record instead.
	ErrNotFound = errors.New("record not found")

	// ErrActiveSessionExists means the store refused a second active session for a course
	ErrActiveSessionExists = errors.New("course already has an active session")

	// ErrVersionConflict means the record changed since it was read
	ErrVersionConflict = errors.New("record was modified concurrently")
)
