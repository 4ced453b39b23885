package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/gallery-backend/api/responses"
	pkgauth "github.com/angelmondragon/gallery-backend/pkg/auth"
	"github.com/angelmondragon/gallery-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/gallery-backend/pkg/errors"
	"github.com/angelmondragon/gallery-backend/pkg/logger"
)

type contextKey string

const ctxOperator contextKey = "operator"

// OperatorAuth validates a bearer token and seeds the request context with the
// operator's identity. The admin surface sits behind this.
func OperatorAuth(cfg config.OperatorConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseOperatorToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.Scope != pkgauth.ScopeAdmin {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient scope"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxOperator, claims.Subject)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{"operator": claims.Subject})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OperatorFromContext returns the authenticated operator's subject, if any.
func OperatorFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(ctxOperator).(string)
	return subject, ok && subject != ""
}
