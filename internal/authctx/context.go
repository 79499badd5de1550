// Package authctx es el Auth Context del cliente: envuelve el SessionStore,
// expone la identidad actual y un flag isAdmin derivado, y notifica cambios.
//
// Se construye explícitamente y se pasa por parámetro; no hay estado global.
// isAdmin es informativo (para UI): las decisiones de autorización siempre
// re-consultan al RoleResolver.
package authctx

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/afrinexa/portal/internal/identity"
	"github.com/afrinexa/portal/internal/observability/logger"
)

// AdminStatus es el estado del flag isAdmin.
type AdminStatus int

const (
	// AdminUnknown: recomputación en curso; no confiable.
	AdminUnknown AdminStatus = iota
	AdminGranted
	AdminDenied
)

func (s AdminStatus) String() string {
	switch s {
	case AdminGranted:
		return "granted"
	case AdminDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Snapshot es lo que reciben los suscriptores.
type Snapshot struct {
	User  *identity.Identity
	Admin AdminStatus
}

// Context es el Auth Context. Seguro para uso concurrente.
type Context struct {
	store   identity.SessionStore
	roles   identity.RoleResolver
	role    identity.Role
	timeout time.Duration

	mu    sync.RWMutex
	user  *identity.Identity
	admin AdminStatus
	gen   uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	wg sync.WaitGroup
}

// New crea el contexto. role vacío = identity.RoleAdmin.
func New(store identity.SessionStore, roles identity.RoleResolver, role identity.Role) *Context {
	if role == "" {
		role = identity.RoleAdmin
	}
	return &Context{
		store:   store,
		roles:   roles,
		role:    role,
		timeout: 10 * time.Second,
		admin:   AdminDenied,
		subs:    make(map[int]func(Snapshot)),
	}
}

// Store expone el SessionStore para quien necesita la identidad más fresca.
func (c *Context) Store() identity.SessionStore { return c.store }

// Restore carga la sesión existente del store (arranque de la app).
func (c *Context) Restore(ctx context.Context) error {
	id, err := c.store.CurrentUser(ctx)
	if err != nil {
		return err
	}
	c.setUser(ctx, id)
	return nil
}

// SignIn autentica. Ante error la identidad previa queda intacta.
// Los errores son identity.ErrInvalidCredentials o identity.ErrUpstreamUnavailable.
func (c *Context) SignIn(ctx context.Context, email, password string) error {
	log := logger.From(ctx).With(logger.Component("authctx"), logger.Op("SignIn"))

	if strings.TrimSpace(email) == "" || password == "" {
		return identity.ErrInvalidCredentials
	}

	id, err := c.store.SignIn(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			log.Info("sign in rejected")
			return identity.ErrInvalidCredentials
		case errors.Is(err, identity.ErrUpstreamUnavailable):
			log.Warn("identity provider unavailable", logger.Err(err))
			return err
		default:
			log.Warn("sign in failed", logger.Err(err))
			return errors.Join(identity.ErrUpstreamUnavailable, err)
		}
	}

	c.setUser(ctx, id)
	log.Info("signed in", logger.UserID(id.ID))
	return nil
}

// SignOut es idempotente y nunca falla: la revocación remota es best-effort
// y el estado local se limpia siempre.
func (c *Context) SignOut(ctx context.Context) {
	if err := c.store.SignOut(ctx); err != nil {
		logger.From(ctx).Warn("remote sign out failed",
			logger.Component("authctx"),
			logger.Op("SignOut"),
			logger.Err(err),
		)
	}
	c.setUser(ctx, nil)
}

// User retorna una copia de la identidad actual o nil.
func (c *Context) User() *identity.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyUser(c.user)
}

func copyUser(u *identity.Identity) *identity.Identity {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// IsAdmin es true sólo cuando la última recomputación confirmó el rol
// para la identidad actual.
func (c *Context) IsAdmin() bool {
	return c.AdminStatus() == AdminGranted
}

// AdminStatus retorna el estado del flag.
func (c *Context) AdminStatus() AdminStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.admin
}

// Subscribe registra fn para cada cambio. Retorna la función para desuscribirse.
func (c *Context) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Wait bloquea hasta que terminen las recomputaciones en vuelo.
func (c *Context) Wait() { c.wg.Wait() }

// setUser reemplaza la identidad y dispara la recomputación de isAdmin.
// Cada cambio incrementa gen; un resultado con gen viejo se descarta.
func (c *Context) setUser(ctx context.Context, id *identity.Identity) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.user = id
	if id == nil {
		c.admin = AdminDenied
	} else {
		c.admin = AdminUnknown
	}
	snap := Snapshot{User: copyUser(c.user), Admin: c.admin}
	c.mu.Unlock()

	c.notify(snap)

	if id == nil {
		return
	}
	c.wg.Add(1)
	go c.recompute(context.WithoutCancel(ctx), gen, id.ID)
}

func (c *Context) recompute(ctx context.Context, gen uint64, userID string) {
	defer c.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ok, err := c.roles.HasRole(ctx, userID, c.role)
	status := AdminDenied
	if err != nil {
		logger.From(ctx).Warn("role recompute failed",
			logger.Component("authctx"),
			logger.UserID(userID),
			logger.Err(err),
		)
	} else if ok {
		status = AdminGranted
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.admin = status
	snap := Snapshot{User: copyUser(c.user), Admin: c.admin}
	c.mu.Unlock()

	c.notify(snap)
}

func (c *Context) notify(s Snapshot) {
	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
