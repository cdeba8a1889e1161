package types

import "errors"

var (
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrMalformedMessage  = errors.New("malformed message")
	ErrInvalidMembers    = errors.New("invalid members")
	ErrConflict          = errors.New("conflict")
	ErrPersistence       = errors.New("persistence failure")
)
