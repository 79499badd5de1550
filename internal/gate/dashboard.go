package gate

import (
	"context"

	"github.com/afrinexa/portal/internal/identity"
	"github.com/afrinexa/portal/internal/observability/logger"
)

// RequireAdminView re-deriva identidad y rol para una vista privilegiada.
// Se llama en cada navegación; no hay decisión cacheada entre vistas.
// Retorna la identidad fresca o uno de identity.ErrUnauthenticated,
// identity.ErrForbidden, identity.ErrUpstreamUnavailable (o el error del store).
func RequireAdminView(ctx context.Context, store identity.SessionStore, roles identity.RoleResolver, role identity.Role) (*identity.Identity, error) {
	if role == "" {
		role = identity.RoleAdmin
	}
	fresh, ok, err := checkAdmin(ctx, store, roles, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, identity.ErrForbidden
	}
	return fresh, nil
}

// Dashboard es el guard de la vista de administración.
type Dashboard struct {
	deps Deps
}

// NewDashboard crea el guard con las mismas dependencias que el login.
func NewDashboard(d Deps) *Dashboard {
	d.Config = d.Config.withDefaults()
	return &Dashboard{deps: d}
}

// Enter autoriza la entrada al dashboard. Si falla redirige al login.
func (d *Dashboard) Enter(ctx context.Context) (*identity.Identity, error) {
	id, err := RequireAdminView(ctx, d.deps.Auth.Store(), d.deps.Roles, d.deps.Config.Role)
	if err != nil {
		logger.From(ctx).Info("dashboard access rejected",
			logger.Component("gate.dashboard"),
			logger.Err(err),
		)
		d.deps.Navigator.Navigate(d.deps.Config.LoginRoute)
		return nil, err
	}
	return id, nil
}

// SignOut cierra la sesión y vuelve al login.
func (d *Dashboard) SignOut(ctx context.Context) {
	d.deps.Auth.SignOut(ctx)
	d.deps.Navigator.Navigate(d.deps.Config.LoginRoute)
}
