package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env      string `yaml:"app_env" env:"APP_ENV"`
		LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
	} `yaml:"app"`

	Server struct {
		Addr               string        `yaml:"addr" env:"SERVER_ADDR"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"SERVER_CORS_ALLOWED_ORIGINS"`
		ReadTimeout        time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout       time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`

	// Identity: proveedor externo (auth + rpc de roles).
	Identity struct {
		URL     string `yaml:"url" env:"IDENTITY_URL"`
		AnonKey string `yaml:"anon_key" env:"IDENTITY_ANON_KEY"`
		// JWTSecret habilita la pre-verificación local HS256 de los access tokens.
		// Vacío = sólo se consulta al proveedor.
		JWTSecret   string        `yaml:"jwt_secret" env:"IDENTITY_JWT_SECRET"`
		RoleBackend string        `yaml:"role_backend" env:"IDENTITY_ROLE_BACKEND"` // rpc | postgres
		AdminRole   string        `yaml:"admin_role" env:"IDENTITY_ADMIN_ROLE"`
		Timeout     time.Duration `yaml:"timeout" env:"IDENTITY_TIMEOUT"`
	} `yaml:"identity"`

	Postgres struct {
		DSN             string        `yaml:"dsn" env:"POSTGRES_DSN"`
		MaxConns        int32         `yaml:"max_conns" env:"POSTGRES_MAX_CONNS"`
		MinConns        int32         `yaml:"min_conns" env:"POSTGRES_MIN_CONNS"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"POSTGRES_CONN_MAX_LIFETIME"`
		// Migrate aplica las migraciones embebidas al arrancar.
		Migrate bool `yaml:"migrate" env:"POSTGRES_MIGRATE"`
	} `yaml:"postgres"`

	AI struct {
		GatewayURL string        `yaml:"gateway_url" env:"AI_GATEWAY_URL"`
		APIKey     string        `yaml:"api_key" env:"AI_GATEWAY_API_KEY"`
		Model      string        `yaml:"model" env:"AI_MODEL"`
		Timeout    time.Duration `yaml:"timeout" env:"AI_TIMEOUT"`
	} `yaml:"ai"`

	Rate struct {
		Enabled bool          `yaml:"enabled" env:"RATE_ENABLED"`
		Backend string        `yaml:"backend" env:"RATE_BACKEND"` // memory | redis
		Limit   int           `yaml:"limit" env:"RATE_LIMIT"`
		Window  time.Duration `yaml:"window" env:"RATE_WINDOW"`
		Redis   struct {
			Addr     string `yaml:"addr" env:"REDIS_ADDR"`
			Password string `yaml:"password" env:"REDIS_PASSWORD"`
			DB       int    `yaml:"db" env:"REDIS_DB"`
			Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
		} `yaml:"redis"`
	} `yaml:"rate"`

	Audit struct {
		Sink string `yaml:"sink" env:"AUDIT_SINK"` // log | postgres
	} `yaml:"audit"`
}

// Load lee el YAML (si path != "") y aplica overrides por env.
// Un path vacío significa configuración sólo por entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// Overrides por env (sólo pisa las variables presentes)
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// el gateway de IA puede tardar bastante
		c.Server.WriteTimeout = 90 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Identity.RoleBackend == "" {
		c.Identity.RoleBackend = "rpc"
	}
	if c.Identity.AdminRole == "" {
		c.Identity.AdminRole = "admin"
	}
	if c.Identity.Timeout == 0 {
		c.Identity.Timeout = 10 * time.Second
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = 5
	}
	if c.AI.GatewayURL == "" {
		c.AI.GatewayURL = "https://ai.gateway.lovable.dev/v1"
	}
	if c.AI.Model == "" {
		c.AI.Model = "google/gemini-2.5-flash"
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 60 * time.Second
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Limit == 0 {
		c.Rate.Limit = 30
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Rate.Redis.Prefix == "" {
		c.Rate.Redis.Prefix = "rl:"
	}
	if c.Audit.Sink == "" {
		c.Audit.Sink = "log"
	}
}

// Validate performs validation of critical configuration values
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Identity.URL) == "" {
		errs = append(errs, errors.New("identity.url is required"))
	}
	if strings.TrimSpace(c.Identity.AnonKey) == "" {
		errs = append(errs, errors.New("identity.anon_key is required"))
	}
	switch c.Identity.RoleBackend {
	case "rpc":
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required when identity.role_backend=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("identity.role_backend %q not supported (rpc|postgres)", c.Identity.RoleBackend))
	}
	if strings.TrimSpace(c.AI.APIKey) == "" {
		errs = append(errs, errors.New("ai.api_key is required"))
	}
	switch c.Rate.Backend {
	case "memory":
	case "redis":
		if c.Rate.Enabled && c.Rate.Redis.Addr == "" {
			errs = append(errs, errors.New("rate.redis.addr is required when rate.backend=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("rate.backend %q not supported (memory|redis)", c.Rate.Backend))
	}
	switch c.Audit.Sink {
	case "log":
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required when audit.sink=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("audit.sink %q not supported (log|postgres)", c.Audit.Sink))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProd indica si corremos en modo producción.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod")
}
