// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the operations of the membership component.
type Service interface {
	// RegisterMember creates a member. The identifier is normalized to
	// upper case before storage; registering a taken identifier returns
	// ErrDuplicateIdentifier.
	RegisterMember(ctx context.Context, identifier, fullName, email, password string) (*Member, error)

	// Authenticate verifies a member's identifier and password. Suspended
	// members cannot authenticate.
	Authenticate(ctx context.Context, identifier, password string) (*Member, error)

	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	FindByIdentifier(ctx context.Context, identifier string) (*Member, error)

	// SetStatus switches a member between active and suspended.
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*Member, error)
}
