// Package supabase implementa el contrato de identity contra un backend-as-a-service
// compatible con GoTrue (auth) y PostgREST (rpc has_role).
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/afrinexa/portal/internal/identity"
	"github.com/afrinexa/portal/internal/observability/logger"
)

// Config configura el cliente.
type Config struct {
	// URL base del proyecto, ej: https://xyz.supabase.co
	URL string
	// AnonKey es la API key pública; viaja en el header "apikey".
	AnonKey string
	// HTTPClient opcional. Default: timeout de 10s.
	HTTPClient *http.Client
}

// Client es a la vez SessionStore (un contexto de navegador), TokenResolver y RoleResolver.
// El estado de sesión sólo lo escriben SignIn/SignOut.
type Client struct {
	base    string
	anonKey string
	http    *http.Client
	now     func() time.Time

	mu      sync.RWMutex
	current *identity.Identity
}

var (
	_ identity.SessionStore  = (*Client)(nil)
	_ identity.TokenResolver = (*Client)(nil)
	_ identity.RoleResolver  = (*Client)(nil)
)

// NewClient crea un cliente sin sesión.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("supabase: url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("supabase: invalid url: %w", err)
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, errors.New("supabase: anon key required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: base, anonKey: cfg.AnonKey, http: hc, now: time.Now}, nil
}

// =================================================================================
// WIRE TYPES
// =================================================================================

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         wireUser `json:"user"`
}

type wireUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type hasRoleRequest struct {
	UserID string `json:"_user_id"`
	Role   string `json:"_role"`
}

// =================================================================================
// SESSION STORE
// =================================================================================

// SignIn hace el password grant. Ante cualquier error la sesión previa queda intacta.
func (c *Client) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, identity.ErrInvalidCredentials
	}

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", body, "")
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w: %v", identity.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusUnprocessableEntity:
		drain(resp.Body)
		return nil, identity.ErrInvalidCredentials
	case resp.StatusCode/100 != 2:
		drain(resp.Body)
		return nil, fmt.Errorf("sign in: %w: status %d", identity.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("sign in: %w: decode: %v", identity.ErrUpstreamUnavailable, err)
	}
	if tr.AccessToken == "" || tr.User.ID == "" {
		return nil, fmt.Errorf("sign in: %w: empty session", identity.ErrUpstreamUnavailable)
	}

	now := c.now().UTC()
	id := &identity.Identity{
		ID:    tr.User.ID,
		Email: tr.User.Email,
		Session: identity.Session{
			AccessToken:  tr.AccessToken,
			RefreshToken: tr.RefreshToken,
			IssuedAt:     now,
			ExpiresAt:    sessionExpiry(now, tr.ExpiresAt, tr.ExpiresIn),
		},
	}

	c.mu.Lock()
	prev := c.current
	c.current = id
	c.mu.Unlock()

	// una sola sesión viva por contexto: la reemplazada se revoca (best-effort)
	if prev != nil && prev.Session.AccessToken != id.Session.AccessToken {
		_ = c.revoke(context.WithoutCancel(ctx), prev.Session.AccessToken)
	}

	cp := *id
	return &cp, nil
}

// SignOut limpia la sesión local y luego intenta revocarla en el proveedor.
// Es idempotente: sin sesión no hace nada.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.mu.Unlock()

	if prev == nil {
		return nil
	}
	return c.revoke(ctx, prev.Session.AccessToken)
}

// revoke invalida token en el proveedor.
func (c *Client) revoke(ctx context.Context, token string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, token)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sign out: %w: %v", identity.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	drain(resp.Body)

	// 401/404: la sesión ya no existe del lado del proveedor, que es lo que queríamos.
	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("sign out: %w: status %d", identity.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

// CurrentUser re-valida la sesión actual contra el proveedor.
// Si el proveedor la rechaza se descarta la copia local.
func (c *Client) CurrentUser(ctx context.Context) (*identity.Identity, error) {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	if cur == nil {
		return nil, nil
	}

	fresh, err := c.ResolveToken(ctx, cur.Session.AccessToken)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			c.mu.Lock()
			if c.current == cur {
				c.current = nil
			}
			c.mu.Unlock()
			return nil, nil
		}
		return nil, err
	}
	fresh.Session = cur.Session
	return fresh, nil
}

// =================================================================================
// TOKEN RESOLVER
// =================================================================================

// ResolveToken consulta GET /auth/v1/user con el bearer dado.
func (c *Client) ResolveToken(ctx context.Context, token string) (*identity.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, identity.ErrUnauthenticated
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, token)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w: %v", identity.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return nil, identity.ErrUnauthenticated
	case resp.StatusCode/100 != 2:
		drain(resp.Body)
		return nil, fmt.Errorf("resolve token: %w: status %d", identity.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var u wireUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("resolve token: %w: decode: %v", identity.ErrUpstreamUnavailable, err)
	}
	if u.ID == "" {
		return nil, identity.ErrUnauthenticated
	}
	return &identity.Identity{ID: u.ID, Email: u.Email}, nil
}

// =================================================================================
// ROLE RESOLVER
// =================================================================================

// HasRole invoca la función server-side has_role(_user_id, _role) vía PostgREST.
// Usa el access token de la sesión actual si existe; si no, la anon key.
func (c *Client) HasRole(ctx context.Context, userID string, role identity.Role) (bool, error) {
	if userID == "" {
		return false, nil
	}
	body, _ := json.Marshal(hasRoleRequest{UserID: userID, Role: string(role)})

	bearer := c.anonKey
	c.mu.RLock()
	if c.current != nil {
		bearer = c.current.Session.AccessToken
	}
	c.mu.RUnlock()

	req, err := c.newRequest(ctx, http.MethodPost, "/rest/v1/rpc/has_role", body, bearer)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("has_role: %w: %v", identity.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.From(ctx).Warn("role rpc failed",
			logger.Component("identity.supabase"),
			logger.Status(resp.StatusCode),
			logger.String("body", string(b)),
		)
		return false, fmt.Errorf("has_role: %w: status %d", identity.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var ok *bool
	if err := json.NewDecoder(resp.Body).Decode(&ok); err != nil {
		return false, fmt.Errorf("has_role: %w: decode: %v", identity.ErrUpstreamUnavailable, err)
	}
	return ok != nil && *ok, nil
}

// Ping verifica que el proveedor responda (GET /auth/v1/health).
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/health", nil, "")
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", identity.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	drain(resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: status %d", identity.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

// =================================================================================
// HELPERS
// =================================================================================

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, bearer string) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("supabase: build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req, nil
}

func sessionExpiry(now time.Time, expiresAt, expiresIn int64) time.Time {
	if expiresAt > 0 {
		return time.Unix(expiresAt, 0).UTC()
	}
	if expiresIn > 0 {
		return now.Add(time.Duration(expiresIn) * time.Second)
	}
	return time.Time{}
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64<<10))
}
