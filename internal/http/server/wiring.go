// Package server arma el servicio HTTP a partir de la configuración.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/afrinexa/portal/internal/aiassist"
	"github.com/afrinexa/portal/internal/audit"
	"github.com/afrinexa/portal/internal/config"
	aiassistctrl "github.com/afrinexa/portal/internal/http/controllers/aiassist"
	healthctrl "github.com/afrinexa/portal/internal/http/controllers/health"
	mw "github.com/afrinexa/portal/internal/http/middlewares"
	"github.com/afrinexa/portal/internal/http/router"
	"github.com/afrinexa/portal/internal/identity"
	"github.com/afrinexa/portal/internal/identity/pgroles"
	"github.com/afrinexa/portal/internal/identity/supabase"
	jwtx "github.com/afrinexa/portal/internal/jwt"
	"github.com/afrinexa/portal/internal/metrics"
	"github.com/afrinexa/portal/internal/observability/logger"
	"github.com/afrinexa/portal/internal/rate"
	"github.com/afrinexa/portal/internal/store/pg"
	migrations "github.com/afrinexa/portal/migrations/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
)

// App es el servicio cableado.
type App struct {
	Server *http.Server

	closers []func()
}

// Close libera pool y clientes en orden inverso.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build cablea todas las dependencias. Ante error libera lo ya abierto.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := logger.L().With(logger.Layer("server"), logger.Op("Build"))
	app := &App{}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	// 1. Métricas
	m, err := metrics.New(nil)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// 2. Proveedor de identidad
	idp, err := supabase.NewClient(supabase.Config{
		URL:        cfg.Identity.URL,
		AnonKey:    cfg.Identity.AnonKey,
		HTTPClient: &http.Client{Timeout: cfg.Identity.Timeout},
	})
	if err != nil {
		return nil, err
	}
	var tokens identity.TokenResolver = idp
	if cfg.Identity.JWTSecret != "" {
		v, err := jwtx.NewVerifier(jwtx.VerifierConfig{
			Secret:   []byte(cfg.Identity.JWTSecret),
			Audience: "authenticated",
		})
		if err != nil {
			return nil, err
		}
		tokens = jwtx.NewPrecheck(v, idp)
		log.Info("local jwt pre-verification enabled")
	}
	checks := []healthctrl.Check{{Name: "identity", Pinger: idp}}

	// 3. Postgres (opcional)
	var pool *pgxpool.Pool
	if cfg.Postgres.DSN != "" {
		store, err := pg.Open(ctx, pg.PoolConfig{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, store.Close)
		pool = store.Pool()

		if cfg.Postgres.Migrate {
			res, err := pg.NewMigrator(migrations.FS, migrations.Dir).Run(ctx, pool)
			if err != nil {
				return nil, fmt.Errorf("migrations: %w", err)
			}
			log.Info("migrations applied",
				logger.Int("applied", len(res.Applied)),
				logger.Int("skipped", len(res.Skipped)),
			)
		}
		if err := m.RegisterPool(prometheus.DefaultRegisterer, store.Pool); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		checks = append(checks, healthctrl.Check{Name: "postgres", Pinger: store})
	}

	// 4. Role Resolver
	var roles identity.RoleResolver = idp
	if cfg.Identity.RoleBackend == "postgres" {
		roles = pgroles.New(pool)
	}

	// 5. Auditoría
	sinks := []audit.Sink{audit.LogSink{}}
	if cfg.Audit.Sink == "postgres" {
		sinks = append(sinks, audit.NewPGSink(pool))
	}

	// 6. Rate limit
	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		switch cfg.Rate.Backend {
		case "redis":
			client := rdb.NewClient(&rdb.Options{
				Addr:     cfg.Rate.Redis.Addr,
				Password: cfg.Rate.Redis.Password,
				DB:       cfg.Rate.Redis.DB,
			})
			app.closers = append(app.closers, func() { _ = client.Close() })
			if err := client.Ping(ctx).Err(); err != nil {
				return nil, fmt.Errorf("redis: %w", err)
			}
			limiter = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.Limit, cfg.Rate.Window)
			checks = append(checks, healthctrl.Check{Name: "redis", Pinger: healthctrl.PingFunc(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			})})
		default:
			limiter = rate.NewMemoryLimiter(cfg.Rate.Limit, cfg.Rate.Window)
		}
	}

	// 7. Gateway de IA
	gw, err := aiassist.NewGatewayClient(aiassist.GatewayConfig{
		BaseURL: cfg.AI.GatewayURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		return nil, err
	}

	// 8. Router
	handler := router.New(router.Deps{
		AIAssist: aiassistctrl.NewController(aiassist.NewService(gw, m)),
		Health:   healthctrl.NewController(checks...),
		Metrics:  m,
		Guard: mw.RequireAdmin(mw.GuardConfig{
			Tokens:  tokens,
			Roles:   roles,
			Role:    identity.Role(cfg.Identity.AdminRole),
			Auditor: audit.New(sinks...),
			Metrics: m,
		}),
		RateLimiter: limiter,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
	})

	app.Server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	log.Info("service wired",
		logger.String("role_backend", cfg.Identity.RoleBackend),
		logger.String("audit_sink", cfg.Audit.Sink),
		logger.Any("rate_enabled", cfg.Rate.Enabled),
	)
	return app, nil
}
