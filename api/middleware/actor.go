package middleware

import (
	"net/http"
	"strings"

	"github.com/chopmart/chopmart-backend/api/responses"
	"github.com/chopmart/chopmart-backend/pkg/enums"
	pkgerrors "github.com/chopmart/chopmart-backend/pkg/errors"
	"github.com/chopmart/chopmart-backend/pkg/logger"
)

const (
	ActorIDHeader   = "X-Actor-Id"
	ActorRoleHeader = "X-Actor-Role"
)

// Actor reads the caller identity from the gateway-populated headers. Requests
// without headers pass through anonymously; a malformed role is rejected.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(ActorIDHeader))
			rawRole := strings.TrimSpace(r.Header.Get(ActorRoleHeader))
			if id == "" && rawRole == "" {
				next.ServeHTTP(w, r)
				return
			}
			if id == "" || rawRole == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "actor id and role must be sent together"))
				return
			}
			role, err := enums.ParseActorRole(strings.ToLower(rawRole))
			if err != nil || role == enums.ActorRoleSystem {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown actor role").
					WithDetails(map[string]any{"role": rawRole}))
				return
			}
			ctx := WithActor(r.Context(), id, role)
			if logg != nil {
				ctx = logg.WithActor(ctx, id, role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects callers whose role is not in roles. With no roles any
// identified caller is allowed.
func RequireRole(logg *logger.Logger, roles ...enums.ActorRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "actor identity required"))
				return
			}
			if len(roles) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted"))
		})
	}
}
