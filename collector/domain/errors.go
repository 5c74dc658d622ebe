package domain

import "fmt"

// APIError is a provider API failure reduced to its status code. Adapters
// construct it instead of propagating vendor response bodies, which may
// carry tenant identifiers or credential hints.
type APIError struct {
	Op         string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: http status %d", e.Op, e.StatusCode)
}
