package service

import "errors"

var (
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrSessionInactive = errors.New("no active session for this course")
	ErrValidation      = errors.New("validation failed")
	ErrAlreadyEnded    = errors.New("session already ended")
	ErrConflict        = errors.New("conflict")
)
