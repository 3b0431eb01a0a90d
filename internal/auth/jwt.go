// Package auth verifies bearer tokens and carries the authenticated
// principal through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moneyboard/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "moneyboard"

// Claims are the registered claims; the subject is the owner id.
type Claims struct {
	jwt.RegisteredClaims
}

// JWT signs and validates HS256 tokens.
type JWT struct {
	secret []byte
	now    func() time.Time
}

func NewJWT(secret string) *JWT {
	return &JWT{secret: []byte(secret), now: time.Now}
}

// Generate issues a token for ownerID valid for ttl.
func (j *JWT) Generate(ownerID string, ttl time.Duration) (string, error) {
	if ownerID == "" {
		return "", errors.New("empty subject")
	}
	now := j.now()
	claims := Claims{jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Validate returns the owner id of a valid token. Every failure wraps
// core.ErrNotAuthenticated.
func (j *JWT) Validate(token string) (string, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrNotAuthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", core.ErrNotAuthenticated)
	}
	return claims.Subject, nil
}

type principalKey struct{}

// WithPrincipal returns ctx carrying ownerID as the current principal.
func WithPrincipal(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, principalKey{}, ownerID)
}

// PrincipalFromContext reports who is calling.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(principalKey{}).(string)
	return id, ok && id != ""
}

// RequirePrincipal fails with core.ErrNotAuthenticated when ctx carries no
// principal.
func RequirePrincipal(ctx context.Context) (string, error) {
	id, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", core.ErrNotAuthenticated
	}
	return id, nil
}
