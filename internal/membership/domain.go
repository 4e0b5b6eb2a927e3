// internal/membership/domain.go
package membership

import (
	"time"

	"github.com/google/uuid"
)

// Member statuses.
const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

// Member represents a library member. Identifier is the member's card or
// student number, stored and looked up upper-cased.
type Member struct {
	ID         uuid.UUID `json:"id"`
	Identifier string    `json:"identifier"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// credential carries a member's stored password hash and salt.
type credential struct {
	PasswordHash string
	Salt         string
}
