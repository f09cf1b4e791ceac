// JWT token generation and validation for the forum API.
//
// SESSION FLOW:
// 1. User logs in with student id + password → AccountService verifies
// 2. Server issues a JWT access token, stores it in an HttpOnly cookie
// 3. On subsequent API calls, middleware reads the cookie, validates the
//    JWT, and sets the student id in the request context
//
// The token's "sub" (Subject) claim carries the STUDENT ID — the stable
// identity key the rest of the system (identity store, notification
// pipeline, authorship checks) is keyed by. The signature ensures nobody
// can forge a token for another student without the secret key.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenIssuer names this application in the "iss" claim. Validation rejects
// tokens minted by anything else, even if signed with the same secret.
const tokenIssuer = "campus-forum"

// defaultTokenLifetime is how long a login session lasts before the client
// must re-authenticate. There is no refresh-token flow.
const defaultTokenLifetime = 12 * time.Hour

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens. The same
// secret must be used for both operations — keep it safe, rotate it
// periodically in production.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. It embeds jwt.RegisteredClaims, which includes
// the standard fields (Issuer, Subject, ExpiresAt, IssuedAt). We keep no
// custom claims — the student id in Subject is all the server needs.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a new JWT access token whose subject is the
// given student id. Signing algorithm: HS256 (HMAC-SHA256).
func (s *TokenService) Generate(studentID string) (string, error) {
	return s.GenerateWithDuration(studentID, defaultTokenLifetime)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(studentID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   studentID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns the student id from
// its Subject claim.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches this application
//   - Algorithm is HS256 — jwt.WithValidMethods prevents algorithm
//     confusion attacks where an attacker sends a token "signed" with none
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
