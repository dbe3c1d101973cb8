package board

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Confirmer checks the code a user types before a deletion is sent.
type Confirmer interface {
	Confirm(code string) bool
}

// HashConfirmer compares codes against a bcrypt hash of the shared code. The code is a
// speed bump against accidental deletes, not an authorization boundary: anyone who can reach
// the agent and knows the code can delete.
type HashConfirmer struct {
	hash []byte
}

// NewHashConfirmer validates that hash is a bcrypt hash.
func NewHashConfirmer(hash string) (*HashConfirmer, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("parse confirmation hash: %w", err)
	}
	return &HashConfirmer{hash: []byte(hash)}, nil
}

func (c *HashConfirmer) Confirm(code string) bool {
	if code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.hash, []byte(code)) == nil
}
