package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/afrinexa/portal/internal/authctx"
	"github.com/afrinexa/portal/internal/gate"
	"github.com/afrinexa/portal/internal/identity"
	"github.com/afrinexa/portal/internal/identity/supabase"
	"github.com/afrinexa/portal/internal/observability/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	identityURL string
	anonKey     string
	serviceURL  string
	email       string
	password    string
	role        string
	timeout     time.Duration
}

// session es un contexto de "navegador": un store, su Auth Context y el gate.
type session struct {
	store     *supabase.Client
	auth      *authctx.Context
	login     *gate.LoginFlow
	dashboard *gate.Dashboard
	console   *console
}

func newSession(o *options) (*session, error) {
	store, err := supabase.NewClient(supabase.Config{
		URL:        o.identityURL,
		AnonKey:    o.anonKey,
		HTTPClient: &http.Client{Timeout: o.timeout},
	})
	if err != nil {
		return nil, err
	}
	role := identity.Role(o.role)
	auth := authctx.New(store, store, role)
	c := &console{out: os.Stdout, errOut: os.Stderr}
	deps := gate.Deps{
		Auth:      auth,
		Roles:     store,
		Notifier:  c,
		Navigator: c,
		Config:    gate.Config{Role: role},
	}
	return &session{
		store:     store,
		auth:      auth,
		login:     gate.NewLoginFlow(deps),
		dashboard: gate.NewDashboard(deps),
		console:   c,
	}, nil
}

// admit corre el flujo de login completo y entra al dashboard.
func (s *session) admit(ctx context.Context, email, password string) (*identity.Identity, error) {
	if email == "" || password == "" {
		return nil, errors.New("--email y --password son requeridos (o ADMINCTL_EMAIL / ADMINCTL_PASSWORD)")
	}
	if st := s.login.Mount(ctx); st != gate.AlreadyAuthenticated {
		if _, err := s.login.Submit(ctx, email, password); err != nil {
			return nil, err
		}
	}
	return s.dashboard.Enter(ctx)
}

func main() {
	_ = godotenv.Load()
	logger.Init(logger.Config{Env: envOr("APP_ENV", "dev"), Level: envOr("LOG_LEVEL", "warn")})
	defer func() { _ = logger.Sync() }()

	o := &options{
		identityURL: envOr("IDENTITY_URL", ""),
		anonKey:     envOr("IDENTITY_ANON_KEY", ""),
		serviceURL:  envOr("ADMINCTL_SERVICE_URL", "http://localhost:8080"),
		email:       envOr("ADMINCTL_EMAIL", ""),
		password:    envOr("ADMINCTL_PASSWORD", ""),
		role:        envOr("IDENTITY_ADMIN_ROLE", string(identity.RoleAdmin)),
		timeout:     30 * time.Second,
	}

	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Cliente de administración del portal Afrinexa",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&o.identityURL, "identity-url", o.identityURL, "URL del proveedor de identidad (env IDENTITY_URL)")
	root.PersistentFlags().StringVar(&o.anonKey, "anon-key", o.anonKey, "API key pública del proveedor (env IDENTITY_ANON_KEY)")
	root.PersistentFlags().StringVar(&o.email, "email", o.email, "Email del admin (env ADMINCTL_EMAIL)")
	root.PersistentFlags().StringVar(&o.password, "password", o.password, "Password (env ADMINCTL_PASSWORD)")
	root.PersistentFlags().StringVar(&o.role, "role", o.role, "Rol requerido")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", o.timeout, "Timeout de cada llamada")

	root.AddCommand(loginCmd(o), whoamiCmd(o), assistCmd(o))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func loginCmd(o *options) *cobra.Command {
	var printToken, keep bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Inicia sesión y verifica el rol de admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkLoginFlags(printToken, keep); err != nil {
				return err
			}
			s, err := newSession(o)
			if err != nil {
				return err
			}
			id, err := s.admit(cmd.Context(), o.email, o.password)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.console.out, "state=%s user=%s email=%s\n", s.login.State(), id.ID, id.Email)
			if printToken {
				fmt.Fprintln(s.console.out, id.Session.AccessToken)
			}
			if !keep {
				s.dashboard.SignOut(cmd.Context())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printToken, "print-token", false, "Imprime el access token (para scripts)")
	cmd.Flags().BoolVar(&keep, "keep-session", false, "No revoca la sesión al terminar (sólo junto a --print-token)")
	return cmd
}

// checkLoginFlags: la sesión no se persiste, así que conservarla sólo sirve
// si el token se entrega al llamador.
func checkLoginFlags(printToken, keep bool) error {
	if keep && !printToken {
		return errors.New("--keep-session requiere --print-token: sin el token la sesión quedaría viva y huérfana")
	}
	return nil
}

func whoamiCmd(o *options) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Resuelve un access token y chequea el rol",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token es requerido (o ADMINCTL_TOKEN)")
			}
			s, err := newSession(o)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := s.store.ResolveToken(ctx, token)
			if err != nil {
				return err
			}
			ok, err := s.store.HasRole(ctx, id.ID, identity.Role(o.role))
			if err != nil {
				return err
			}
			fmt.Fprintf(s.console.out, "user=%s email=%s %s=%t\n", id.ID, id.Email, o.role, ok)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", envOr("ADMINCTL_TOKEN", ""), "Access token")
	return cmd
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
