// Package gate implementa el Admin Gate del lado cliente: la máquina de estados
// del login de administración y el guard de vistas privilegiadas (dashboard).
//
// Orden estricto por intento: signIn → identidad fresca → rol → navegación.
// Nunca se admite antes de confirmar el rol.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/afrinexa/portal/internal/authctx"
	"github.com/afrinexa/portal/internal/identity"
	"github.com/afrinexa/portal/internal/observability/logger"
	"go.uber.org/zap"
)

// State del flujo de login.
type State int

const (
	Idle State = iota
	Submitting
	CheckingRole
	Admitted
	Denied
	AlreadyAuthenticated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case CheckingRole:
		return "checking_role"
	case Admitted:
		return "admitted"
	case Denied:
		return "denied"
	case AlreadyAuthenticated:
		return "already_authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Mensajes visibles.
const (
	MsgWelcome            = "Welcome back!"
	MsgAccessDenied       = "Access denied. Admin privileges required."
	MsgInvalidCredentials = "Invalid email or password."
	MsgTryAgainLater      = "Unable to reach the authentication service. Please try again later."
)

var (
	// ErrBusy: ya hay un intento en vuelo (el formulario está deshabilitado).
	ErrBusy = errors.New("gate: login attempt already in progress")
	// ErrStale: el intento fue cancelado antes de terminar; su resultado se descartó.
	ErrStale = errors.New("gate: stale login attempt discarded")
)

// Notifier muestra mensajes al usuario (toasts).
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Navigator cambia de vista.
type Navigator interface {
	Navigate(route string)
}

// Config rutas y rol requerido.
type Config struct {
	DashboardRoute string
	LoginRoute     string
	Role           identity.Role
}

func (c Config) withDefaults() Config {
	if c.DashboardRoute == "" {
		c.DashboardRoute = "/dashboard"
	}
	if c.LoginRoute == "" {
		c.LoginRoute = "/adminlogin"
	}
	if c.Role == "" {
		c.Role = identity.RoleAdmin
	}
	return c
}

// Deps son las dependencias inyectadas del gate.
type Deps struct {
	Auth      *authctx.Context
	Roles     identity.RoleResolver
	Notifier  Notifier
	Navigator Navigator
	Config    Config
}

// LoginFlow es la máquina de estados de la página de login.
type LoginFlow struct {
	deps Deps

	mu       sync.Mutex
	state    State
	gen      uint64
	inflight bool
}

// NewLoginFlow crea el flujo en Idle.
func NewLoginFlow(d Deps) *LoginFlow {
	d.Config = d.Config.withDefaults()
	return &LoginFlow{deps: d}
}

// State retorna el estado actual.
func (f *LoginFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Busy indica si el formulario debe estar deshabilitado.
func (f *LoginFlow) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight
}

// Mount evalúa el fast path: si ya hay una sesión de admin válida se navega
// directo al dashboard. El flag del Auth Context sólo decide si vale la pena
// verificar; la decisión se toma con identidad y rol frescos.
func (f *LoginFlow) Mount(ctx context.Context) State {
	log := logger.From(ctx).With(logger.Component("gate.login"), logger.Op("Mount"))

	if f.deps.Auth.User() == nil {
		return f.set(Idle)
	}
	f.mu.Lock()
	if f.inflight {
		st := f.state
		f.mu.Unlock()
		return st
	}
	f.gen++
	gen := f.gen
	f.mu.Unlock()

	fresh, ok, err := f.verify(ctx)
	if !f.current(gen) {
		return f.State()
	}
	if err != nil || !ok {
		if err != nil {
			log.Warn("session re-check failed", logger.Err(err))
		}
		return f.set(Idle)
	}

	log.Debug("already authenticated", logger.UserID(fresh.ID))
	f.set(AlreadyAuthenticated)
	f.deps.Navigator.Navigate(f.deps.Config.DashboardRoute)
	return AlreadyAuthenticated
}

// Submit ejecuta un intento de login completo y retorna el estado final.
// Un error distinto de nil explica por qué no se admitió.
func (f *LoginFlow) Submit(ctx context.Context, email, password string) (State, error) {
	f.mu.Lock()
	if f.inflight {
		f.mu.Unlock()
		return f.State(), ErrBusy
	}
	f.inflight = true
	f.gen++
	gen := f.gen
	f.state = Submitting
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight = false
		f.mu.Unlock()
	}()

	log := logger.From(ctx).With(logger.Component("gate.login"), logger.Op("Submit"))

	// 1) signIn
	if err := f.deps.Auth.SignIn(ctx, email, password); err != nil {
		if !f.current(gen) {
			return f.State(), ErrStale
		}
		f.set(Idle)
		if errors.Is(err, identity.ErrInvalidCredentials) {
			f.deps.Notifier.Error(MsgInvalidCredentials)
		} else {
			f.deps.Notifier.Error(MsgTryAgainLater)
		}
		return Idle, err
	}

	if !f.current(gen) {
		f.discard(ctx, log)
		return f.State(), ErrStale
	}
	f.set(CheckingRole)

	// 2) identidad fresca + rol
	fresh, ok, err := f.verify(ctx)
	if !f.current(gen) {
		f.discard(ctx, log)
		return f.State(), ErrStale
	}
	if err != nil || !ok {
		// 3) denegado: nunca dejar una sesión autenticada sin rol
		f.deps.Auth.SignOut(context.WithoutCancel(ctx))
		f.set(Denied)
		f.deps.Notifier.Error(MsgAccessDenied)
		if err != nil {
			log.Warn("role check failed, denying", logger.Err(err))
			return Denied, err
		}
		log.Info("admin access denied", logger.UserID(fresh.ID))
		return Denied, identity.ErrForbidden
	}

	// 4) admitido
	f.set(Admitted)
	log.Info("admin admitted", logger.UserID(fresh.ID))
	f.deps.Notifier.Success(MsgWelcome)
	f.deps.Navigator.Navigate(f.deps.Config.DashboardRoute)
	return Admitted, nil
}

// Cancel descarta el intento en vuelo (el usuario navegó a otra vista).
// Cuando su resultado llegue no tendrá efecto y cualquier sesión que haya
// establecido se revoca.
func (f *LoginFlow) Cancel() {
	f.mu.Lock()
	f.gen++
	f.state = Idle
	f.mu.Unlock()
}

// verify re-obtiene la identidad desde el SessionStore y consulta el rol.
// Sin sesión retorna identity.ErrUnauthenticated.
func (f *LoginFlow) verify(ctx context.Context) (*identity.Identity, bool, error) {
	return checkAdmin(ctx, f.deps.Auth.Store(), f.deps.Roles, f.deps.Config.Role)
}

func (f *LoginFlow) discard(ctx context.Context, log *zap.Logger) {
	f.deps.Auth.SignOut(context.WithoutCancel(ctx))
	log.Info("stale login attempt discarded")
}

func (f *LoginFlow) current(gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen == gen
}

func (f *LoginFlow) set(s State) State {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	return s
}

func checkAdmin(ctx context.Context, store identity.SessionStore, roles identity.RoleResolver, role identity.Role) (*identity.Identity, bool, error) {
	fresh, err := store.CurrentUser(ctx)
	if err != nil {
		return nil, false, err
	}
	if fresh == nil {
		return nil, false, identity.ErrUnauthenticated
	}
	ok, err := roles.HasRole(ctx, fresh.ID, role)
	if err != nil {
		return fresh, false, err
	}
	return fresh, ok, nil
}
