package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/afrinexa/portal/internal/observability/logger"
	"github.com/afrinexa/portal/internal/store/pg"
	migrations "github.com/afrinexa/portal/migrations/postgres"
	"github.com/joho/godotenv"
)

// migrate aplica las migraciones embebidas (user_roles, admin_audit_events).
//
//	migrate [-dsn postgres://...] [up|list]
func main() {
	_ = godotenv.Load()
	logger.Init(logger.Config{Env: os.Getenv("APP_ENV"), Level: "info"})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	dsn := flag.String("dsn", os.Getenv("POSTGRES_DSN"), "DSN de Postgres (env POSTGRES_DSN)")
	flag.Parse()

	action := "up"
	if args := flag.Args(); len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}

	m := pg.NewMigrator(migrations.FS, migrations.Dir)

	switch action {
	case "list":
		migs, err := m.ParseMigrations()
		if err != nil {
			log.Fatal("parse migrations", logger.Err(err))
		}
		for _, mig := range migs {
			fmt.Printf("%04d  %s\n", mig.Version, mig.Name)
		}

	case "up":
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		store, err := pg.Open(ctx, pg.PoolConfig{DSN: *dsn})
		if err != nil {
			log.Fatal("open postgres", logger.Err(err))
		}
		defer store.Close()

		res, err := m.Run(ctx, store.Pool())
		if err != nil {
			log.Fatal("migrate", logger.Err(err))
		}
		log.Info("migrations completed",
			logger.Int("applied", len(res.Applied)),
			logger.Int("skipped", len(res.Skipped)),
			logger.DurationMs(res.Duration),
		)

	default:
		fmt.Fprintf(os.Stderr, "acción desconocida %q (up|list)\n", action)
		os.Exit(2)
	}
}
