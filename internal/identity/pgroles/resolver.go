// Package pgroles resuelve roles leyendo la tabla user_roles de Postgres.
// Es la alternativa al rpc has_role cuando el portal tiene acceso directo a la base.
package pgroles

import (
	"context"
	"fmt"

	"github.com/afrinexa/portal/internal/identity"
	"github.com/jackc/pgx/v5"
)

// Querier lo cumple *pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Resolver implementa identity.RoleResolver.
type Resolver struct {
	db Querier
}

var _ identity.RoleResolver = (*Resolver)(nil)

// New crea el resolver.
func New(db Querier) *Resolver { return &Resolver{db: db} }

const hasRoleSQL = `
SELECT EXISTS (
  SELECT 1 FROM user_roles WHERE user_id::text = $1 AND role = $2
);`

// HasRole consulta la asignación. Un error de base es "desconocido".
func (r *Resolver) HasRole(ctx context.Context, userID string, role identity.Role) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var ok bool
	if err := r.db.QueryRow(ctx, hasRoleSQL, userID, string(role)).Scan(&ok); err != nil {
		return false, fmt.Errorf("%w: user_roles: %v", identity.ErrUpstreamUnavailable, err)
	}
	return ok, nil
}
