// Package identity define el contrato con el proveedor de identidad externo:
// identidades, sesiones, roles y los errores que cruzan esa frontera.
//
// La aplicación nunca es la fuente de verdad de estos datos: guarda copias
// transitorias y re-consulta al proveedor en cada decisión de autorización.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Role es el nombre de un rol asignado server-side.
type Role string

// RoleAdmin habilita el dashboard y las funciones privilegiadas.
const RoleAdmin Role = "admin"

// Session es el binding vivo entre un contexto de navegador y una Identity.
// La expiración la impone el proveedor; ExpiresAt es sólo informativo.
type Session struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

// Expired indica si la sesión ya venció respecto de now.
// Una sesión sin ExpiresAt nunca se considera vencida localmente.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Identity es la copia local (no autoritativa) de un principal autenticado.
type Identity struct {
	ID      string
	Email   string
	Session Session
}

// =================================================================================
// ERRORES
// =================================================================================

var (
	// ErrInvalidCredentials: email/password rechazados por el proveedor.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrUnauthenticated: credencial ausente, inválida o vencida.
	ErrUnauthenticated = errors.New("identity: unauthenticated")
	// ErrForbidden: autenticado pero sin el rol requerido.
	ErrForbidden = errors.New("identity: forbidden")
	// ErrUpstreamUnavailable: el proveedor o el resolver de roles no respondió bien.
	// Siempre se trata como denegación.
	ErrUpstreamUnavailable = errors.New("identity: upstream unavailable")
)

// =================================================================================
// INTERFACES CONSUMIDAS
// =================================================================================

// SessionStore es la vista cliente del proveedor (un contexto de navegador).
// Sólo el Auth Context escribe la sesión; el resto la lee.
type SessionStore interface {
	// SignIn autentica y establece la sesión. Ante error no modifica la sesión previa.
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	// SignOut revoca la sesión actual (best-effort) y siempre limpia el estado local.
	SignOut(ctx context.Context) error
	// CurrentUser re-obtiene la identidad de la sesión actual desde el proveedor.
	// Retorna (nil, nil) si no hay sesión.
	CurrentUser(ctx context.Context) (*Identity, error)
}

// TokenResolver resuelve un bearer token a una Identity (lado servidor).
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*Identity, error)
}

// RoleResolver responde si un usuario tiene un rol.
// La ausencia de asignación es (false, nil); un error significa "desconocido"
// y el llamador debe denegar.
type RoleResolver interface {
	HasRole(ctx context.Context, userID string, role Role) (bool, error)
}

// NormalizeEmail aplica trim + lower, igual que el proveedor.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
