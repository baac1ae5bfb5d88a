package middleware

import (
	"log/slog"
	"net/http"

	"github.com/dept-site-api/internal/application/authz"
	"github.com/dept-site-api/internal/domain"
)

// Decisions reported to the guard's observer.
const (
	DecisionAllow        = "allow"
	DecisionDeny         = "deny"
	DecisionUnauthorized = "unauthenticated"
)

// RequireRoles admits a request only when the caller's role is one of roles.
// An empty role list leaves the route open. observe may be nil.
func RequireRoles(authorizer *authz.Authorizer, observe func(decision string), roles ...domain.Role) func(http.Handler) http.Handler {
	required := authz.NewRoleSet(roles...)
	if observe == nil {
		observe = func(string) {}
	}
	return func(next http.Handler) http.Handler {
		if len(required) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				observe(DecisionUnauthorized)
				writeJSONError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
			role, err := domain.ParseRole(claims.Role)
			if err != nil || !authorizer.IsAuthorized(required, role) {
				observe(DecisionDeny)
				slog.Warn("role check denied", "account_id", claims.AccountID, "role", claims.Role, "path", r.URL.Path)
				writeJSONError(w, r, http.StatusForbidden, "forbidden")
				return
			}
			observe(DecisionAllow)
			next.ServeHTTP(w, r)
		})
	}
}
