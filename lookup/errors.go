package lookup

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIP        = errors.New("invalid IP address")
	ErrInvalidProvider  = errors.New("invalid provider")
	ErrDatabaseNotFound = errors.New("database file not found")
	ErrRateLimited      = errors.New("lookup rate limit exceeded")
	ErrUnauthorized     = errors.New("lookup credential rejected")
)

// APIError is returned when the lookup API answers with a non-2xx status.
// It matches ErrRateLimited for 429 and ErrUnauthorized for 401/403.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("lookup API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("lookup API returned status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == 429
	case ErrUnauthorized:
		return e.StatusCode == 401 || e.StatusCode == 403
	}
	return false
}
