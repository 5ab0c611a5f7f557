// Package credential wraps the password hashing primitive behind a
// stateless verifier.
package credential

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Verifier hashes and checks passwords using bcrypt.
type Verifier struct {
	cost int
}

// NewVerifier builds a Verifier with the given bcrypt cost; values
// outside the valid range fall back to the bcrypt default.
func NewVerifier(cost int) *Verifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Verifier{cost: cost}
}

// Hash derives a salted hash for storage.
func (v *Verifier) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches the stored hash. A malformed
// hash counts as a mismatch, never an error surfaced to the caller.
func (v *Verifier) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
