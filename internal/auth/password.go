// Package auth — password hashing utilities.
//
// WHY PBKDF2?
// PBKDF2 is a deliberately slow, iterated key-derivation function. That
// slowness is a security feature: it makes brute-force attacks expensive.
// Unlike a bare SHA-256 of the password, PBKDF2:
//   - Uses a random salt per derivation (two users with the same password
//     get different hashes, and rainbow tables are useless)
//   - Repeats the underlying HMAC many times (the iteration count)
//
// KNOWN WEAKNESS — DO NOT COPY TO A REAL DEPLOYMENT:
// The iteration count below is 50, inherited from the system this replaces.
// OWASP recommends 600,000 iterations for PBKDF2-HMAC-SHA256. The constant
// is kept as-is so stored credentials keep verifying; treat it as a
// configuration value awaiting a proper migration, not a recommendation.
//
// NEVER log plaintext passwords. Nothing in this file (or its callers)
// writes the plaintext anywhere.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Derivation constants. Configuration values, not security tuning — see the
// package comment about the iteration count.
const (
	saltLength = 16 // bytes of random salt per derivation
	iterations = 50
	keyLength  = 32 // bytes of derived key (256 bits)
)

// PasswordService derives and verifies PBKDF2 credentials.
//
// It's a struct (not free functions) so the iteration count can be raised
// via configuration later without touching call sites, and so tests can
// construct one explicitly like any other dependency.
type PasswordService struct {
	iterations int
}

// NewPasswordService creates a PasswordService with the default iteration
// count.
func NewPasswordService() *PasswordService {
	return &PasswordService{iterations: iterations}
}

// Derive generates a fresh random salt and the PBKDF2-HMAC-SHA256 hash of
// the password under it. Both are returned base64-encoded, ready to store
// on the user record.
//
// FAILURE IS FATAL:
// The only error path is the system's random source being unavailable.
// Password storage cannot degrade silently — callers must treat a non-nil
// error as an unrecoverable configuration problem, not retry with a weaker
// scheme.
func (p *PasswordService) Derive(password string) (salt, hash string, err error) {
	raw := make([]byte, saltLength)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("auth: reading random salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), raw, p.iterations, keyLength, sha256.New)

	return base64.StdEncoding.EncodeToString(raw),
		base64.StdEncoding.EncodeToString(key),
		nil
}

// Verify re-derives the hash for the given password under the stored salt
// and compares it against the stored hash in constant time.
//
// Returns false for a wrong password AND for malformed stored values — a
// record with a corrupt salt simply never verifies.
func (p *PasswordService) Verify(password, salt, hash string) bool {
	rawSalt, err := base64.StdEncoding.DecodeString(salt)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false
	}

	got := pbkdf2.Key([]byte(password), rawSalt, p.iterations, keyLength, sha256.New)

	// hmac.Equal is a constant-time comparison — response time doesn't
	// reveal how many leading bytes matched.
	return hmac.Equal(got, want)
}
