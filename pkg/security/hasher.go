// Package security holds credential primitives: password hashing, access
// token issuance and temporary password generation.
package security

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// VerifyResult is the outcome of a password verification.
type VerifyResult int

const (
	Mismatch VerifyResult = iota
	Match
)

// Hasher derives and verifies bcrypt password hashes. The salt is embedded in
// the hash itself. Passwords are reduced to a base64 SHA-256 digest first so
// that bcrypt's 72 byte input limit never truncates or rejects them.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using cost, falling back to bcrypt.DefaultCost
// when cost is out of range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(digest(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares plain against hash. Malformed hashes never match.
func (h *Hasher) Verify(hash, plain string) VerifyResult {
	if hash == "" {
		return Mismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), digest(plain)); err != nil {
		return Mismatch
	}
	return Match
}

func digest(plain string) []byte {
	sum := sha256.Sum256([]byte(plain))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
