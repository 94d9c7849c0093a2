/*
auth.go - JWT bearer authentication and capability checks

PURPOSE:
  Parses the Authorization header, validates the HS256 token, and puts an
  authz.Principal on the request context. Route groups then gate on
  capabilities rather than raw role names.

TOKEN CLAIMS:
  sub   user ID
  name  display name (used for responsible-officer matching)
  role  one of the five system roles

Unknown or missing roles authenticate fine but carry the empty capability
set, so every guarded route returns 403.
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BigAlzz/smon/authz"
	"github.com/BigAlzz/smon/plan"
)

type principalKey struct{}

// Authenticator validates bearer tokens and attaches the principal.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

type tokenClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken mints a token for a user. Used by tests and the dev login
// endpoint; production deployments sit behind the department's SSO.
func (a *Authenticator) IssueToken(userID plan.UserID, name string, role authz.Role) (string, error) {
	claims := tokenClaims{
		Name: name,
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: string(userID),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware authenticates every request passing through it.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}

		token, err := jwt.ParseWithClaims(
			strings.TrimPrefix(header, "Bearer "),
			&tokenClaims{},
			func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return a.secret, nil
			},
		)
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		claims := token.Claims.(*tokenClaims)
		role, _ := authz.ParseRole(claims.Role)
		p := authz.NewPrincipal(plan.UserID(claims.Subject), claims.Name, role)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// PrincipalFrom returns the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(authz.Principal)
	return p, ok
}

// RequireCapability gates a route group on one capability.
func RequireCapability(cap authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			if !p.Can(cap) {
				writeError(w, http.StatusForbidden, "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
