// Package auth verifies bearer tokens issued by the identity service and
// carries the caller's id through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken       = errors.New("access token required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidSigningAlgo = errors.New("unexpected signing method")
)

// Claims mirror what the identity service signs into access tokens.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	jwtlib.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	s := strings.TrimSpace(secret)
	if s == "" {
		return nil, errors.New("auth: empty secret key")
	}
	return &Verifier{secret: []byte(s)}, nil
}

// Verify checks the HS256 signature and standard time claims.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningAlgo
		}
		return v.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid || strings.TrimSpace(claims.ID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FromAuthorization reads "Authorization: Bearer <token>". Websocket clients
// that cannot set headers may pass the token in the access_token query param.
func FromAuthorization(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(token), nil
	}
	if q := strings.TrimSpace(r.URL.Query().Get("access_token")); q != "" {
		return q, nil
	}
	return "", ErrMissingToken
}

type ctxKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// UserID returns the authenticated caller id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if c, ok := ctx.Value(ctxKey{}).(*Claims); ok && c != nil {
		return c.ID
	}
	return ""
}
