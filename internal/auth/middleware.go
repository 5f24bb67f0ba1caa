package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flight-control/fcc/internal/audit"
)

// Claims are the verified token claims.
type Claims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
	Scopes  []string `json:"scopes"`
}

// ContextKey is used for storing claims in request context.
type ContextKey string

const ClaimsKey ContextKey = "claims"

const (
	RoleViewer     = "viewer"
	RoleController = "controller"
)

const (
	ScopeRead      = "read"
	ScopeControl   = "control"
	ScopeTelemetry = "telemetry"
)

// HealthPath is served without a token.
const HealthPath = "/api/v1/health"

// localClaims are granted to every request when no verifier is configured.
var localClaims = &Claims{
	Subject: "local",
	Roles:   []string{RoleController},
	Scopes:  []string{ScopeRead, ScopeControl, ScopeTelemetry},
}

// TokenVerifier verifies a bearer token.
type TokenVerifier interface {
	VerifyToken(token string) (*Claims, error)
}

var _ TokenVerifier = (*Verifier)(nil)

// Middleware handles authentication and authorization.
type Middleware struct {
	verifier TokenVerifier
}

// NewMiddleware creates the middleware. A nil verifier disables token checks
// and every request acts as the local controller.
func NewMiddleware(verifier TokenVerifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// RequireAuth rejects requests without a valid bearer token. The token subject
// becomes the audit actor.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == HealthPath {
			next(w, r)
			return
		}

		claims := localClaims
		if m.verifier != nil {
			token, err := extractBearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			claims, err = m.verifier.VerifyToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
				return
			}
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		ctx = audit.WithActor(ctx, claims.Subject)
		next(w, r.WithContext(ctx))
	}
}

// RequireScope rejects requests whose claims lack any of requiredScopes.
func (m *Middleware) RequireScope(requiredScopes ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromRequest(r)
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}
			if !hasScopes(claims, requiredScopes) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", fmt.Errorf("empty token")
	}
	return token, nil
}

func hasScopes(claims *Claims, required []string) bool {
	for _, want := range required {
		found := false
		for _, scope := range claims.Scopes {
			if scope == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// GetClaimsFromRequest returns the claims stored by RequireAuth, or nil.
func GetClaimsFromRequest(r *http.Request) *Claims {
	claims, ok := r.Context().Value(ClaimsKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// writeError writes an error in the API envelope format.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result":        "error",
		"code":          code,
		"message":       message,
		"correlationId": fmt.Sprintf("%d", time.Now().UnixNano()),
	})
}
