package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_YAMLWithDefaults(t *testing.T) {
	p := writeYAML(t, `
identity:
  url: https://abc.supabase.co
  anon_key: anon
ai:
  api_key: sk-test
rate:
  window: 30s
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "rpc", c.Identity.RoleBackend)
	assert.Equal(t, "admin", c.Identity.AdminRole)
	assert.Equal(t, "google/gemini-2.5-flash", c.AI.Model)
	assert.Equal(t, 30*time.Second, c.Rate.Window)
	assert.Equal(t, "memory", c.Rate.Backend)
	assert.Equal(t, "log", c.Audit.Sink)
	assert.False(t, c.IsProd())
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	p := writeYAML(t, `
app:
  app_env: dev
identity:
  url: https://abc.supabase.co
  anon_key: anon
ai:
  api_key: sk-test
`)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("IDENTITY_ADMIN_ROLE", "editor")
	t.Setenv("SERVER_CORS_ALLOWED_ORIGINS", "https://afrinexa.com,https://admin.afrinexa.com")

	c, err := Load(p)
	require.NoError(t, err)
	assert.True(t, c.IsProd())
	assert.Equal(t, "editor", c.Identity.AdminRole)
	assert.Equal(t, []string{"https://afrinexa.com", "https://admin.afrinexa.com"}, c.Server.CORSAllowedOrigins)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("IDENTITY_URL", "https://abc.supabase.co")
	t.Setenv("IDENTITY_ANON_KEY", "anon")
	t.Setenv("AI_GATEWAY_API_KEY", "sk-test")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://abc.supabase.co", c.Identity.URL)
}

func TestValidate_Errors(t *testing.T) {
	p := writeYAML(t, `
identity:
  role_backend: ldap
rate:
  backend: redis
  enabled: true
audit:
  sink: postgres
`)
	_, err := Load(p)
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "identity.url is required")
	assert.Contains(t, msg, "identity.anon_key is required")
	assert.Contains(t, msg, `role_backend "ldap"`)
	assert.Contains(t, msg, "ai.api_key is required")
	assert.Contains(t, msg, "rate.redis.addr is required")
	assert.Contains(t, msg, "postgres.dsn is required when audit.sink=postgres")
}

func TestValidate_PostgresRoleBackendNeedsDSN(t *testing.T) {
	p := writeYAML(t, `
identity:
  url: https://abc.supabase.co
  anon_key: anon
  role_backend: postgres
ai:
  api_key: sk-test
`)
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity.role_backend=postgres")
}

func TestLoad_ExampleFile(t *testing.T) {
	t.Setenv("IDENTITY_ANON_KEY", "anon")
	t.Setenv("AI_GATEWAY_API_KEY", "key")

	c, err := Load(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "rpc", c.Identity.RoleBackend)
	assert.Equal(t, "memory", c.Rate.Backend)
	assert.Equal(t, time.Minute, c.Rate.Window)
	assert.Equal(t, []string{"*"}, c.Server.CORSAllowedOrigins)
}
