package model

import "errors"

// Request-level failure taxonomy. Services wrap these with context; the API
// layer maps them to status codes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
)
