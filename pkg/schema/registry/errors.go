package registry

import "errors"

// Sentinel errors classifying registry failures; callers use errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrIllegalState    = errors.New("illegal state transition")
)
