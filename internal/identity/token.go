// Package identity issues and verifies the service tokens that authenticate
// API actors. Tokens are HS256 JWTs signed with the shared service secret.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrNoSecret is returned when a TokenIssuer is constructed without a secret.
var ErrNoSecret = errors.New("identity: token secret must not be empty")

// ServiceTokenClaims are the JWT claims for an API service token.
type ServiceTokenClaims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
	Role    string `json:"role,omitempty"`
}

// TokenIssuer issues and verifies service JWTs with a shared HMAC secret.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	issuerURL — the "iss" claim value; matches the service's base URL.
//	ttl       — token lifetime (default: 1 hour).
func NewTokenIssuer(secret []byte, issuerURL string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrNoSecret
	}
	if ttl == 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: secret, issuer: issuerURL, ttl: ttl}, nil
}

// Issue creates a signed service token for actorID.
func (t *TokenIssuer) Issue(actorID, role string) (string, error) {
	now := time.Now().UTC()
	claims := ServiceTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		ActorID: actorID,
		Role:    role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a service token, returning its claims.
func (t *TokenIssuer) Verify(tokenStr string) (*ServiceTokenClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&ServiceTokenClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify service token: %w", err)
	}
	claims, ok := token.Claims.(*ServiceTokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid service token claims")
	}
	if claims.ActorID == "" {
		return nil, fmt.Errorf("service token has no actor")
	}
	return claims, nil
}
