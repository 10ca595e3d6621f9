package domain

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrNoQuote     = errors.New("no quote available")
	ErrDisabled    = errors.New("engine disabled")
	ErrRateLimited = errors.New("rate limited")
	ErrLockHeld    = errors.New("lock already held")
	ErrContextDone = errors.New("context cancelled")
)
