// internal/membership/errors.go
package membership

import "errors"

var (
	ErrMemberNotFound      = errors.New("member not found")
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrMemberSuspended     = errors.New("member suspended")
	ErrRateLimited         = errors.New("rate limit exceeded")
)
