package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrFetchFailure = errors.New("fetch failure")
	ErrMissingField = errors.New("missing field")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock already held")
)
