// Package token signs and verifies the compact session claims carried
// by bearer tokens. Decoding is pure signature/expiry validation; it
// never consults the session store.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"authgate/internal/domain/auth/model"
)

// Claims is the signed payload inside a session token.
type Claims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// Username returns the token subject.
func (c *Claims) Username() string {
	return c.Subject
}

// Codec signs and verifies HS256 session tokens with a shared secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

// NewCodec builds a codec. The secret must not be empty; the ttl is the
// canonical session lifetime applied to every issued claim.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token codec requires a signing secret")
	}
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
	}, nil
}

// TTL returns the configured claim lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Sign issues a token for the given subject.
func (c *Codec) Sign(username string, userID uint) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies signature and expiry. Malformed structure, a wrong
// signature, a non-HMAC algorithm, or an elapsed expiry all normalize
// to ErrInvalidToken.
func (c *Codec) Decode(raw string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return nil, model.ErrInvalidToken
	}
	return claims, nil
}
