package middlewares

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/afrinexa/portal/internal/audit"
	"github.com/afrinexa/portal/internal/http/errors"
	"github.com/afrinexa/portal/internal/identity"
	"github.com/afrinexa/portal/internal/metrics"
	"github.com/afrinexa/portal/internal/observability/logger"
)

// GuardConfig configura RequireAdmin.
type GuardConfig struct {
	Tokens  identity.TokenResolver
	Roles   identity.RoleResolver
	Role    identity.Role // default: admin
	Auditor *audit.Auditor
	Metrics *metrics.Metrics
}

// RequireAdmin protege una operación privilegiada.
// Reglas (en este orden):
//  1. Sin "Authorization: Bearer <token>" => 401.
//  2. Token que el proveedor no resuelve => 401. Proveedor caído => 500.
//  3. Error del Role Resolver => 500 (fail-closed).
//  4. Sin el rol => 403.
//  5. Con el rol => next, con la identidad en el contexto.
//
// Cada decisión se audita y se cuenta. La decisión no se cachea entre requests.
func RequireAdmin(cfg GuardConfig) Middleware {
	if cfg.Role == "" {
		cfg.Role = identity.RoleAdmin
	}
	if cfg.Auditor == nil {
		cfg.Auditor = audit.New()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.From(ctx).With(logger.Layer("middleware"), logger.Component("admin_guard"))

			decide := func(outcome string, id *identity.Identity, detail string) {
				ev := audit.Event{
					Event:     audit.EventAdminGuard,
					Outcome:   outcome,
					Path:      r.URL.Path,
					RequestID: GetRequestID(ctx),
					Detail:    detail,
				}
				if id != nil {
					ev.UserID, ev.Email = id.ID, id.Email
				}
				cfg.Auditor.Record(ctx, ev)
				cfg.Metrics.GuardDecision(outcome)
			}

			token := BearerToken(r)
			if token == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				decide(metrics.OutcomeUnauthenticated, nil, "missing bearer token")
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}

			id, err := cfg.Tokens.ResolveToken(ctx, token)
			switch {
			case err == nil && id != nil:
			case err == nil || stderrors.Is(err, identity.ErrUnauthenticated):
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				decide(metrics.OutcomeUnauthenticated, nil, "invalid or expired token")
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			default:
				log.Error("token resolution failed", logger.Op("ResolveToken"), logger.Err(err))
				decide(metrics.OutcomeError, nil, "identity provider unavailable")
				errors.WriteError(w, errors.ErrAuthorizationUnavailable.WithCause(err))
				return
			}

			ok, err := hasRole(ctx, cfg.Roles, id.ID, cfg.Role)
			if err != nil {
				log.Error("role check failed", logger.Op("HasRole"), logger.UserID(id.ID), logger.Err(err))
				decide(metrics.OutcomeError, id, "role check failed")
				errors.WriteError(w, errors.ErrAuthorizationUnavailable.WithCause(err))
				return
			}
			if !ok {
				decide(metrics.OutcomeForbidden, id, "missing role "+string(cfg.Role))
				errors.WriteError(w, errors.ErrForbidden)
				return
			}

			decide(metrics.OutcomeGranted, id, "")
			ctx = WithIdentity(ctx, id)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(id.ID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// hasRole trata un resolver ausente como error, nunca como permiso.
func hasRole(ctx context.Context, roles identity.RoleResolver, userID string, role identity.Role) (bool, error) {
	if roles == nil {
		return false, identity.ErrUpstreamUnavailable
	}
	return roles.HasRole(ctx, userID, role)
}
