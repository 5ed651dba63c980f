package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for backend requests.
var (
	ErrNotFound     = errors.New("backend: not found")
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrRateLimited  = errors.New("backend: rate limited by server")
	ErrServer       = errors.New("backend: server error")
)

// Error wraps an underlying error with the endpoint it came from.
type Error struct {
	Op       string // "articles" or "tags"
	Endpoint string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s [%s]: %v", e.Op, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
