// Package auth verifies Supabase-style bearer tokens and resolves the user
// id a request acts for.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for every rejected credential. The cause is
// wrapped for logs but never shown to clients.
var ErrUnauthorized = errors.New("unauthorized")

// RoleAuthenticated is the only role accepted; anonymous tokens are refused.
const RoleAuthenticated = "authenticated"

// Claims are the JWT claims issued by Supabase Auth.
type Claims struct {
	jwt.RegisteredClaims
	Email       string `json:"email"`
	Role        string `json:"role"`
	SessionID   string `json:"session_id"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// Verifier validates a raw token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// JWTVerifier checks signature, expiry, audience and role.
type JWTVerifier struct {
	keyfunc  jwt.Keyfunc
	methods  []string
	audience string
}

// NewJWKSVerifier verifies asymmetric tokens (RS256, ES256) against the keys
// published at jwksURL. Keys are cached and refreshed by keyfunc.
func NewJWKSVerifier(ctx context.Context, jwksURL, audience string) (*JWTVerifier, error) {
	if strings.TrimSpace(jwksURL) == "" {
		return nil, errors.New("auth: JWKS URL cannot be empty")
	}
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("auth: create JWKS client: %w", err)
	}
	return &JWTVerifier{keyfunc: jwks.Keyfunc, methods: []string{"RS256", "ES256"}, audience: audience}, nil
}

// NewSecretVerifier verifies HS256 tokens signed with the project secret.
func NewSecretVerifier(secret []byte, audience string) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: JWT secret cannot be empty")
	}
	kf := func(*jwt.Token) (any, error) { return secret, nil }
	return &JWTVerifier{keyfunc: kf, methods: []string{"HS256"}, audience: audience}, nil
}

// Verify parses token and enforces the accepted algorithms, a subject and
// the authenticated role.
func (v *JWTVerifier) Verify(_ context.Context, token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyfunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	if claims.Role != RoleAuthenticated || claims.IsAnonymous {
		return nil, fmt.Errorf("%w: role %q not allowed", ErrUnauthorized, claims.Role)
	}
	return claims, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <t>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
