package security

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/contacts-api/internal/domain"
)

// MaxPasswordBytes is bcrypt's input limit. Longer inputs are rejected,
// never truncated.
const MaxPasswordBytes = 72

// BcryptHasher implements auth.PasswordHasher.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher raises costs below bcrypt.MinCost to bcrypt.DefaultCost.
// Costs above bcrypt.MaxCost surface as hash_failed on first use.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Cost() int { return h.cost }

func (h *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", domain.ErrWeakPassword("max length 72 bytes")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", domain.ErrHashFailed(err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. Malformed digests and
// over-long passwords are mismatches, never errors.
func (h *BcryptHasher) Verify(password, digest string) bool {
	if digest == "" || len(password) > MaxPasswordBytes {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
