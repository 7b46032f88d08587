package enrichment

import "errors"

var (
	ErrInvalidCredential = errors.New("invalid API token provided")
	ErrInvalidAddress    = errors.New("invalid IP address")
)
