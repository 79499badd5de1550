// Package memory es un proveedor de identidad en memoria para dev y tests.
// Cumple los mismos contratos que el cliente remoto.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/afrinexa/portal/internal/identity"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type user struct {
	id    string
	email string
	hash  []byte
}

// Provider guarda usuarios, tokens emitidos y asignaciones de rol.
// Current modela un único contexto de navegador.
type Provider struct {
	mu       sync.RWMutex
	users    map[string]*user // por email normalizado
	byID     map[string]*user
	tokens   map[string]identity.Session
	owners   map[string]string // token -> user id
	roles    map[string]map[identity.Role]struct{}
	current  string // access token de la sesión actual
	ttl      time.Duration
	now      func() time.Time
	roleErr  error
	roleHook func(userID string)
}

var (
	_ identity.SessionStore  = (*Provider)(nil)
	_ identity.TokenResolver = (*Provider)(nil)
	_ identity.RoleResolver  = (*Provider)(nil)
)

// Option configura el Provider.
type Option func(*Provider)

// WithTTL fija la duración de las sesiones emitidas. Default 1h.
func WithTTL(d time.Duration) Option { return func(p *Provider) { p.ttl = d } }

// WithClock reemplaza el reloj (tests).
func WithClock(now func() time.Time) Option { return func(p *Provider) { p.now = now } }

// New crea un proveedor vacío.
func New(opts ...Option) *Provider {
	p := &Provider{
		users:  make(map[string]*user),
		byID:   make(map[string]*user),
		tokens: make(map[string]identity.Session),
		owners: make(map[string]string),
		roles:  make(map[string]map[identity.Role]struct{}),
		ttl:    time.Hour,
		now:    time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AddUser registra un usuario con los roles dados y retorna su id.
func (p *Provider) AddUser(email, password string, roles ...identity.Role) (string, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || password == "" {
		return "", errors.New("memory: email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("memory: hash password: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.users[email]; dup {
		return "", fmt.Errorf("memory: user %s already exists", email)
	}
	u := &user{id: uuid.NewString(), email: email, hash: hash}
	p.users[email] = u
	p.byID[u.id] = u
	for _, r := range roles {
		p.grantLocked(u.id, r)
	}
	return u.id, nil
}

// Grant asigna un rol.
func (p *Provider) Grant(userID string, role identity.Role) {
	p.mu.Lock()
	p.grantLocked(userID, role)
	p.mu.Unlock()
}

// Revoke quita un rol. Las decisiones siguientes lo reflejan de inmediato.
func (p *Provider) Revoke(userID string, role identity.Role) {
	p.mu.Lock()
	if set, ok := p.roles[userID]; ok {
		delete(set, role)
	}
	p.mu.Unlock()
}

// FailRoles hace que HasRole retorne err hasta que se llame con nil.
func (p *Provider) FailRoles(err error) {
	p.mu.Lock()
	p.roleErr = err
	p.mu.Unlock()
}

// OnRoleCheck registra un hook que corre antes de cada HasRole (tests de carrera).
func (p *Provider) OnRoleCheck(fn func(userID string)) {
	p.mu.Lock()
	p.roleHook = fn
	p.mu.Unlock()
}

// Expire invalida un token como si hubiese vencido del lado del proveedor.
func (p *Provider) Expire(token string) {
	p.mu.Lock()
	delete(p.tokens, token)
	delete(p.owners, token)
	p.mu.Unlock()
}

func (p *Provider) grantLocked(userID string, role identity.Role) {
	set, ok := p.roles[userID]
	if !ok {
		set = make(map[identity.Role]struct{})
		p.roles[userID] = set
	}
	set[role] = struct{}{}
}

// SignIn implementa identity.SessionStore. La sesión previa de este contexto se revoca:
// nunca hay más de una viva.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	id, err := p.Issue(ctx, email, password)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if prev := p.current; prev != "" {
		delete(p.tokens, prev)
		delete(p.owners, prev)
	}
	p.current = id.Session.AccessToken
	p.mu.Unlock()

	return id, nil
}

// Issue autentica y emite una sesión sin ligarla al contexto actual,
// como si viniera de otro navegador.
func (p *Provider) Issue(ctx context.Context, email, password string) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email = identity.NormalizeEmail(email)

	p.mu.RLock()
	u, ok := p.users[email]
	p.mu.RUnlock()
	if !ok || password == "" {
		return nil, identity.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return nil, identity.ErrInvalidCredentials
	}

	now := p.now().UTC()
	sess := identity.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		IssuedAt:     now,
		ExpiresAt:    now.Add(p.ttl),
	}

	p.mu.Lock()
	p.tokens[sess.AccessToken] = sess
	p.owners[sess.AccessToken] = u.id
	p.mu.Unlock()

	return &identity.Identity{ID: u.id, Email: u.email, Session: sess}, nil
}

// SignOut revoca el token actual. Sin sesión no hace nada.
func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == "" {
		return nil
	}
	delete(p.tokens, p.current)
	delete(p.owners, p.current)
	p.current = ""
	return nil
}

// CurrentUser re-resuelve el token actual.
func (p *Provider) CurrentUser(ctx context.Context) (*identity.Identity, error) {
	p.mu.RLock()
	tok := p.current
	p.mu.RUnlock()
	if tok == "" {
		return nil, nil
	}
	id, err := p.ResolveToken(ctx, tok)
	if errors.Is(err, identity.ErrUnauthenticated) {
		p.mu.Lock()
		if p.current == tok {
			p.current = ""
		}
		p.mu.Unlock()
		return nil, nil
	}
	return id, err
}

// ResolveToken implementa identity.TokenResolver.
func (p *Provider) ResolveToken(ctx context.Context, token string) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	sess, ok := p.tokens[token]
	if !ok || sess.Expired(p.now()) {
		return nil, identity.ErrUnauthenticated
	}
	u, ok := p.byID[p.owners[token]]
	if !ok {
		return nil, identity.ErrUnauthenticated
	}
	return &identity.Identity{ID: u.id, Email: u.email, Session: sess}, nil
}

// HasRole implementa identity.RoleResolver.
func (p *Provider) HasRole(ctx context.Context, userID string, role identity.Role) (bool, error) {
	p.mu.RLock()
	hook := p.roleHook
	p.mu.RUnlock()
	if hook != nil {
		hook(userID)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.roleErr != nil {
		return false, fmt.Errorf("%w: %v", identity.ErrUpstreamUnavailable, p.roleErr)
	}
	_, ok := p.roles[userID][role]
	return ok, nil
}

// Ping siempre responde ok.
func (p *Provider) Ping(context.Context) error { return nil }
