package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/afrinexa/portal/internal/audit"
	"github.com/afrinexa/portal/internal/identity"
	"github.com/afrinexa/portal/internal/identity/memory"
	"github.com/afrinexa/portal/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct{ events []audit.Event }

func (m *memSink) Write(_ context.Context, e audit.Event) error {
	m.events = append(m.events, e)
	return nil
}

type guardFixture struct {
	provider   *memory.Provider
	sink       *memSink
	metrics    *metrics.Metrics
	calls      atomic.Int32
	handler    http.Handler
	adminToken string
	userToken  string
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	f := &guardFixture{provider: memory.New(), sink: &memSink{}}

	_, err := f.provider.AddUser("admin@example.com", "admin-pass", identity.RoleAdmin)
	require.NoError(t, err)
	_, err = f.provider.AddUser("user@example.com", "user-pass")
	require.NoError(t, err)

	ctx := context.Background()
	admin, err := f.provider.Issue(ctx, "admin@example.com", "admin-pass")
	require.NoError(t, err)
	user, err := f.provider.Issue(ctx, "user@example.com", "user-pass")
	require.NoError(t, err)
	f.adminToken, f.userToken = admin.Session.AccessToken, user.Session.AccessToken

	f.metrics, err = metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		id := GetIdentity(r.Context())
		require.NotNil(t, id)
		_, _ = w.Write([]byte(id.Email))
	})
	f.handler = Chain(protected, WithRequestID(), RequireAdmin(GuardConfig{
		Tokens:  f.provider,
		Roles:   f.provider,
		Auditor: audit.New(f.sink),
		Metrics: f.metrics,
	}))
	return f
}

func (f *guardFixture) do(authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/functions/v1/blog-ai-assist", strings.NewReader(`{}`))
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequireAdmin_MissingToken(t *testing.T) {
	f := newGuardFixture(t)

	rec := f.do("")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, errorBody(t, rec)["error"])
	assert.EqualValues(t, 0, f.calls.Load())
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, metrics.OutcomeUnauthenticated, f.sink.events[0].Outcome)
	assert.Empty(t, f.sink.events[0].UserID)
	assert.NotEmpty(t, f.sink.events[0].RequestID)
}

func TestRequireAdmin_MalformedHeader(t *testing.T) {
	f := newGuardFixture(t)

	rec := f.do("Basic " + f.adminToken)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, 0, f.calls.Load())
}

func TestRequireAdmin_InvalidToken(t *testing.T) {
	f := newGuardFixture(t)

	rec := f.do("Bearer not-a-session")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", errorBody(t, rec)["code"])
	assert.EqualValues(t, 0, f.calls.Load())
}

func TestRequireAdmin_ExpiredToken(t *testing.T) {
	f := newGuardFixture(t)
	f.provider.Expire(f.adminToken)

	rec := f.do("Bearer " + f.adminToken)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.EqualValues(t, 0, f.calls.Load())
}

func TestRequireAdmin_NonAdminForbidden(t *testing.T) {
	f := newGuardFixture(t)

	rec := f.do("Bearer " + f.userToken)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.EqualValues(t, 0, f.calls.Load())
	require.Len(t, f.sink.events, 1)
	ev := f.sink.events[0]
	assert.Equal(t, metrics.OutcomeForbidden, ev.Outcome)
	assert.Equal(t, "user@example.com", ev.Email)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.GuardDecisions.WithLabelValues(metrics.OutcomeForbidden)))
}

func TestRequireAdmin_ResolverErrorFailsClosed(t *testing.T) {
	f := newGuardFixture(t)
	f.provider.FailRoles(errors.New("rpc 500"))

	rec := f.do("Bearer " + f.adminToken)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "AUTHORIZATION_UNAVAILABLE", errorBody(t, rec)["code"])
	assert.EqualValues(t, 0, f.calls.Load())
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, metrics.OutcomeError, f.sink.events[0].Outcome)
}

type downResolver struct{}

func (downResolver) ResolveToken(context.Context, string) (*identity.Identity, error) {
	return nil, identity.ErrUpstreamUnavailable
}

func TestRequireAdmin_ProviderDownIsInternal(t *testing.T) {
	var calls int
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { calls++ }),
		RequireAdmin(GuardConfig{Tokens: downResolver{}, Roles: memory.New()}))

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Authorization", "Bearer abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, calls)
}

func TestRequireAdmin_AdminGranted(t *testing.T) {
	f := newGuardFixture(t)

	rec := f.do("bearer " + f.adminToken)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.com", rec.Body.String())
	assert.EqualValues(t, 1, f.calls.Load())
	require.Len(t, f.sink.events, 1)
	assert.Equal(t, metrics.OutcomeGranted, f.sink.events[0].Outcome)
}

func TestRequireAdmin_NoDecisionCaching(t *testing.T) {
	f := newGuardFixture(t)
	admin, err := f.provider.ResolveToken(context.Background(), f.adminToken)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, f.do("Bearer "+f.adminToken).Code)
	f.provider.Revoke(admin.ID, identity.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, f.do("Bearer "+f.adminToken).Code)
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestRequireAdmin_AuditNeverCarriesToken(t *testing.T) {
	f := newGuardFixture(t)
	f.do("Bearer " + f.adminToken)
	f.do("Bearer " + f.userToken)
	f.do("Bearer garbage-token")

	for _, ev := range f.sink.events {
		for _, s := range []string{ev.UserID, ev.Email, ev.Path, ev.Detail, ev.RequestID} {
			assert.NotContains(t, s, f.adminToken)
			assert.NotContains(t, s, f.userToken)
			assert.NotContains(t, s, "garbage-token")
		}
	}
}
