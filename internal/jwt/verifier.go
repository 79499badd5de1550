package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/afrinexa/portal/internal/identity"
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Claims es el subconjunto de claims del access token que nos interesa.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwtv5.RegisteredClaims
}

// VerifierConfig configura la verificación local HS256.
type VerifierConfig struct {
	Secret []byte
	// Audience esperada. Vacío = no se valida.
	Audience string
	// Issuer esperado. Vacío = no se valida.
	Issuer string
	// Leeway para exp/nbf. Default 30s.
	Leeway time.Duration
}

// Verifier valida firma y vigencia de un access token sin salir del proceso.
type Verifier struct {
	cfg    VerifierConfig
	parser *jwtv5.Parser
}

// NewVerifier crea el verificador. El secreto es obligatorio.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret required")
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 30 * time.Second
	}
	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithLeeway(cfg.Leeway),
		jwtv5.WithExpirationRequired(),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtv5.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(cfg.Issuer))
	}
	return &Verifier{cfg: cfg, parser: jwtv5.NewParser(opts...)}, nil
}

// Verify parsea y valida el token.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	var c Claims
	tok, err := v.parser.ParseWithClaims(raw, &c, func(*jwtv5.Token) (any, error) {
		return v.cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	if !tok.Valid || c.Subject == "" {
		return nil, errors.New("jwt: invalid token")
	}
	return &c, nil
}

// Precheck decora un TokenResolver: descarta localmente los tokens mal firmados
// o vencidos y sólo consulta al proveedor por los que pasan. La decisión final
// sigue siendo del proveedor (un token revocado pero bien firmado se rechaza allá).
type Precheck struct {
	verifier *Verifier
	next     identity.TokenResolver
}

var _ identity.TokenResolver = (*Precheck)(nil)

// NewPrecheck crea el decorador.
func NewPrecheck(v *Verifier, next identity.TokenResolver) *Precheck {
	return &Precheck{verifier: v, next: next}
}

// ResolveToken implementa identity.TokenResolver.
func (p *Precheck) ResolveToken(ctx context.Context, token string) (*identity.Identity, error) {
	claims, err := p.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrUnauthenticated, err)
	}
	id, err := p.next.ResolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if id.ID != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", identity.ErrUnauthenticated)
	}
	return id, nil
}
