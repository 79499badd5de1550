package gate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/afrinexa/portal/internal/authctx"
	"github.com/afrinexa/portal/internal/identity"
	"github.com/afrinexa/portal/internal/identity/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	success  []string
	errors   []string
	navigate []string
}

func (r *recorder) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success = append(r.success, msg)
}

func (r *recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

func (r *recorder) Navigate(to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigate = append(r.navigate, to)
}

type fixture struct {
	provider *memory.Provider
	auth     *authctx.Context
	rec      *recorder
	flow     *LoginFlow
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := memory.New()
	_, err := p.AddUser("admin@example.com", "admin-pass", identity.RoleAdmin)
	require.NoError(t, err)
	_, err = p.AddUser("user@example.com", "user-pass")
	require.NoError(t, err)

	auth := authctx.New(p, p, identity.RoleAdmin)
	rec := &recorder{}
	deps := Deps{Auth: auth, Roles: p, Notifier: rec, Navigator: rec}
	t.Cleanup(auth.Wait)
	return &fixture{provider: p, auth: auth, rec: rec, flow: NewLoginFlow(deps), deps: deps}
}

func TestSubmit_AdminIsAdmitted(t *testing.T) {
	f := newFixture(t)

	st, err := f.flow.Submit(context.Background(), "admin@example.com", "admin-pass")
	require.NoError(t, err)
	assert.Equal(t, Admitted, st)
	assert.Equal(t, Admitted, f.flow.State())
	assert.Equal(t, []string{"Welcome back!"}, f.rec.success)
	assert.Equal(t, []string{"/dashboard"}, f.rec.navigate)
	assert.Empty(t, f.rec.errors)
}

func TestSubmit_NonAdminIsDeniedAndSignedOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.flow.Submit(ctx, "user@example.com", "user-pass")
	require.ErrorIs(t, err, identity.ErrForbidden)
	assert.Equal(t, Denied, st)
	assert.Equal(t, []string{"Access denied. Admin privileges required."}, f.rec.errors)
	assert.Empty(t, f.rec.navigate)

	cur, err := f.provider.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
	assert.Nil(t, f.auth.User())
}

func TestSubmit_RoleResolverErrorFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.provider.FailRoles(errors.New("status 500"))
	ctx := context.Background()

	st, err := f.flow.Submit(ctx, "admin@example.com", "admin-pass")
	require.ErrorIs(t, err, identity.ErrUpstreamUnavailable)
	assert.Equal(t, Denied, st)
	assert.NotContains(t, f.rec.navigate, "/dashboard")
	assert.Equal(t, []string{"Access denied. Admin privileges required."}, f.rec.errors)

	cur, err := f.provider.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestSubmit_InvalidCredentialsBackToIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.flow.Submit(ctx, "admin@example.com", "wrong")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
	assert.Equal(t, Idle, st)
	assert.Equal(t, []string{MsgInvalidCredentials}, f.rec.errors)
	assert.Empty(t, f.rec.navigate)

	cur, err := f.provider.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

type unreachable struct{ identity.SessionStore }

func (unreachable) SignIn(context.Context, string, string) (*identity.Identity, error) {
	return nil, identity.ErrUpstreamUnavailable
}

func TestSubmit_NetworkErrorBackToIdle(t *testing.T) {
	f := newFixture(t)
	auth := authctx.New(unreachable{f.provider}, f.provider, identity.RoleAdmin)
	f.deps.Auth = auth
	flow := NewLoginFlow(f.deps)

	st, err := flow.Submit(context.Background(), "admin@example.com", "admin-pass")
	require.ErrorIs(t, err, identity.ErrUpstreamUnavailable)
	assert.Equal(t, Idle, st)
	assert.Equal(t, []string{MsgTryAgainLater}, f.rec.errors)
}

func TestSubmit_CancelledAttemptIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	f.provider.OnRoleCheck(func(string) {
		entered <- struct{}{}
		<-release
	})

	type result struct {
		st  State
		err error
	}
	done := make(chan result, 1)
	go func() {
		st, err := f.flow.Submit(ctx, "admin@example.com", "admin-pass")
		done <- result{st, err}
	}()

	// el recompute del Auth Context y el check del gate
	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(5 * time.Second):
			t.Fatal("role check never started")
		}
	}
	assert.True(t, f.flow.Busy())

	f.flow.Cancel()
	close(release)

	res := <-done
	require.ErrorIs(t, res.err, ErrStale)
	assert.Equal(t, Idle, res.st)
	assert.Empty(t, f.rec.navigate)
	assert.Empty(t, f.rec.success)

	cur, err := f.provider.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestSubmit_BusyRejectsSecondSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	f.provider.OnRoleCheck(func(string) {
		entered <- struct{}{}
		<-release
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.flow.Submit(ctx, "admin@example.com", "admin-pass")
		done <- err
	}()
	<-entered

	_, err := f.flow.Submit(ctx, "admin@example.com", "admin-pass")
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
}

func TestMount_AlreadyAuthenticatedAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.SignIn(ctx, "admin@example.com", "admin-pass"))
	f.auth.Wait()

	st := f.flow.Mount(ctx)
	assert.Equal(t, AlreadyAuthenticated, st)
	assert.Equal(t, []string{"/dashboard"}, f.rec.navigate)
	assert.Empty(t, f.rec.success)
}

func TestMount_RevokedRoleStaysIdle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.SignIn(ctx, "admin@example.com", "admin-pass"))
	f.auth.Wait()
	require.True(t, f.auth.IsAdmin())

	// el flag local sigue en true pero el rol ya no existe
	f.provider.Revoke(f.auth.User().ID, identity.RoleAdmin)

	assert.Equal(t, Idle, f.flow.Mount(ctx))
	assert.Empty(t, f.rec.navigate)
}

func TestMount_NoSession(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, Idle, f.flow.Mount(context.Background()))
	assert.Empty(t, f.rec.navigate)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "checking_role", CheckingRole.String())
	assert.Equal(t, "already_authenticated", AlreadyAuthenticated.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestSubmit_ReplacesRestoredNonAdminSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.auth.SignIn(ctx, "user@example.com", "user-pass"))
	stale := f.auth.User().Session.AccessToken

	assert.Equal(t, Idle, f.flow.Mount(ctx))

	st, err := f.flow.Submit(ctx, "admin@example.com", "admin-pass")
	require.NoError(t, err)
	assert.Equal(t, Admitted, st)

	_, err = f.provider.ResolveToken(ctx, stale)
	require.ErrorIs(t, err, identity.ErrUnauthenticated)
}
