// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/uara/dashboard/internal/apperror"
	"github.com/uara/dashboard/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// IdentityKey is the context key for the caller's identity.
	IdentityKey ContextKey = "identity"
)

// Claims represents JWT claims issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Auth creates JWT authentication middleware. The token subject becomes the
// caller's customer id.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				reject(w, apperror.Unauthorized("Missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				reject(w, apperror.Unauthorized("Invalid authorization header format"))
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				reject(w, apperror.Unauthorized("Invalid token"))
				return
			}

			ctx := WithIdentity(r.Context(), model.Identity{
				UserID:    claims.Subject,
				Email:     claims.Email,
				Name:      claims.Name,
				AvatarURL: claims.Picture,
			})
			annotateUser(ctx, claims.Subject)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity gets the caller's identity from context.
func GetIdentity(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(model.Identity)
	return id, ok
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	id, _ := GetIdentity(ctx)
	return id.UserID
}

// Provisioner creates the caller's account on first sight.
type Provisioner interface {
	EnsureUser(ctx context.Context, id model.Identity) error
}

// Provision ensures the authenticated caller has an account. It must run
// after Auth.
func Provision(p Provisioner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := GetIdentity(r.Context())
			if !ok {
				reject(w, apperror.Unauthorized("Missing user identity"))
				return
			}
			if err := p.EnsureUser(r.Context(), id); err != nil {
				reject(w, apperror.From(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
