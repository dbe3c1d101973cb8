package models

import (
	"fmt"
	"strings"
	"time"
)

// Role selects which backend surface serves an identity.
type Role string

const (
	RoleStandard   Role = "standard"
	RoleOperations Role = "operations"
)

// Identity is the user whose collection is being tracked. In the operations role an internal
// operator (OperatorEmail) views Email's collection without a bearer token.
type Identity struct {
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	Token         string `json:"-"`
	OperatorEmail string `json:"operatorEmail,omitempty"`
}

// Key distinguishes the same email viewed under different roles, so switching role
// invalidates the previous view.
func (i Identity) Key() string {
	return fmt.Sprintf("%s:%s", i.Role, strings.ToLower(i.Email))
}

// Validate checks the identity has what its role needs.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.Email) == "" {
		return fmt.Errorf("email is required")
	}
	switch i.Role {
	case RoleStandard:
		if i.Token == "" {
			return fmt.Errorf("token is required for the standard role")
		}
	case RoleOperations:
		if i.OperatorEmail == "" {
			return fmt.Errorf("operatorEmail is required for the operations role")
		}
	default:
		return fmt.Errorf("role must be one of standard, operations; got %q", i.Role)
	}
	return nil
}

// SessionEntry is the cached collection for one owner.
type SessionEntry struct {
	OwnerEmail string      `json:"ownerEmail"`
	Records    []JobRecord `json:"records"`
	FetchedAt  time.Time   `json:"fetchedAt"`
	IsLoading  bool        `json:"isLoading"`
}

// Snapshot is the persisted form of a SessionEntry, tagged with the identity key it was
// taken under.
type Snapshot struct {
	IdentityKey string      `json:"identityKey"`
	OwnerEmail  string      `json:"ownerEmail"`
	Records     []JobRecord `json:"records"`
	FetchedAt   time.Time   `json:"fetchedAt"`
}

// PendingTransition is a gated drop waiting for an artifact to exist.
type PendingTransition struct {
	JobID        string `json:"jobID"`
	TargetStatus Status `json:"targetStatus"`
}
