package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/afrinexa/portal/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_SignInAndResolve(t *testing.T) {
	p := New()
	uid, err := p.AddUser("Admin@Afrinexa.com", "s3cret!", identity.RoleAdmin)
	require.NoError(t, err)

	ctx := context.Background()
	id, err := p.SignIn(ctx, "admin@afrinexa.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, uid, id.ID)
	assert.Equal(t, "admin@afrinexa.com", id.Email)

	got, err := p.ResolveToken(ctx, id.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uid, got.ID)

	cur, err := p.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, uid, cur.ID)
}

func TestProvider_InvalidCredentials(t *testing.T) {
	p := New()
	_, err := p.AddUser("a@b.com", "pw")
	require.NoError(t, err)

	_, err = p.SignIn(context.Background(), "a@b.com", "nope")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)
	_, err = p.SignIn(context.Background(), "ghost@b.com", "pw")
	require.ErrorIs(t, err, identity.ErrInvalidCredentials)

	cur, err := p.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestProvider_DuplicateUser(t *testing.T) {
	p := New()
	_, err := p.AddUser("a@b.com", "pw")
	require.NoError(t, err)
	_, err = p.AddUser(" A@B.com", "pw2")
	require.Error(t, err)
}

func TestProvider_SignOutRevokesToken(t *testing.T) {
	p := New()
	_, _ = p.AddUser("a@b.com", "pw")
	ctx := context.Background()

	id, err := p.SignIn(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx))
	require.NoError(t, p.SignOut(ctx))

	_, err = p.ResolveToken(ctx, id.Session.AccessToken)
	require.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestProvider_ExpiredSession(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := New(WithTTL(time.Minute), WithClock(func() time.Time { return now }))
	_, _ = p.AddUser("a@b.com", "pw")
	ctx := context.Background()

	id, err := p.SignIn(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = p.ResolveToken(ctx, id.Session.AccessToken)
	require.ErrorIs(t, err, identity.ErrUnauthenticated)

	cur, err := p.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestProvider_Roles(t *testing.T) {
	p := New()
	uid, _ := p.AddUser("a@b.com", "pw")
	ctx := context.Background()

	ok, err := p.HasRole(ctx, uid, identity.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	p.Grant(uid, identity.RoleAdmin)
	ok, err = p.HasRole(ctx, uid, identity.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	p.Revoke(uid, identity.RoleAdmin)
	ok, err = p.HasRole(ctx, uid, identity.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	p.Grant(uid, identity.RoleAdmin)
	p.FailRoles(errors.New("boom"))
	ok, err = p.HasRole(ctx, uid, identity.RoleAdmin)
	require.ErrorIs(t, err, identity.ErrUpstreamUnavailable)
	assert.False(t, ok)
}

func TestProvider_SignInRevokesPreviousSession(t *testing.T) {
	p := New()
	ctx := context.Background()
	_, err := p.AddUser("a@b.com", "pw")
	require.NoError(t, err)

	first, err := p.SignIn(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	second, err := p.SignIn(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	_, err = p.ResolveToken(ctx, first.Session.AccessToken)
	require.ErrorIs(t, err, identity.ErrUnauthenticated)

	require.NoError(t, p.SignOut(ctx))
	_, err = p.ResolveToken(ctx, second.Session.AccessToken)
	require.ErrorIs(t, err, identity.ErrUnauthenticated)
}

func TestProvider_IssueLeavesCurrentSessionAlone(t *testing.T) {
	p := New()
	ctx := context.Background()
	_, err := p.AddUser("a@b.com", "pw")
	require.NoError(t, err)

	cur, err := p.SignIn(ctx, "a@b.com", "pw")
	require.NoError(t, err)
	other, err := p.Issue(ctx, "a@b.com", "pw")
	require.NoError(t, err)

	got, err := p.CurrentUser(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cur.Session.AccessToken, got.Session.AccessToken)

	require.NoError(t, p.SignOut(ctx))
	_, err = p.ResolveToken(ctx, other.Session.AccessToken)
	require.NoError(t, err)
}
