// Package auth verifies bearer tokens and resolves the owner identity that
// every budget operation runs as. Tokens are HS256 JWTs whose subject is the
// owner; logout revokes a token by its ID until the token would have expired
// anyway.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenRevoked     = errors.New("token revoked")
)

// Identity is the verified caller of a request.
type Identity struct {
	Owner     string
	TokenID   string
	ExpiresAt time.Time
}

// RevocationStore persists revoked token IDs until they expire.
type RevocationStore interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	PurgeRevoked(ctx context.Context, now time.Time) (int64, error)
}

type Verifier struct {
	secret  []byte
	issuer  string
	revoked RevocationStore
	now     func() time.Time
}

func NewVerifier(secret, issuer string, revoked RevocationStore) *Verifier {
	return &Verifier{
		secret:  []byte(secret),
		issuer:  issuer,
		revoked: revoked,
		now:     time.Now,
	}
}

// Sign issues a token for owner valid for ttl. Production tokens come from
// the identity provider; this is used by tests and local tooling.
func (v *Verifier) Sign(owner string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   owner,
		Issuer:    v.issuer,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses raw, checks signature, expiry, issuer and revocation.
func (v *Verifier) Verify(ctx context.Context, raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrNotAuthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrNotAuthenticated)
	}

	id := Identity{Owner: claims.Subject, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}

	if v.revoked != nil && id.TokenID != "" {
		revoked, err := v.revoked.IsRevoked(ctx, id.TokenID, v.now())
		if err != nil {
			return Identity{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Identity{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, ErrTokenRevoked)
		}
	}
	return id, nil
}

// Revoke invalidates the token of id until its own expiry.
func (v *Verifier) Revoke(ctx context.Context, id Identity) error {
	if v.revoked == nil {
		return errors.New("no revocation store configured")
	}
	if id.TokenID == "" {
		return fmt.Errorf("%w: token has no id", ErrNotAuthenticated)
	}
	return v.revoked.RevokeToken(ctx, id.TokenID, id.ExpiresAt)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
