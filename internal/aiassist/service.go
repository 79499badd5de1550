// Package aiassist implementa la asistencia de redacción del blog:
// outline, expand y headline sobre un gateway de chat OpenAI-compatible.
package aiassist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/afrinexa/portal/internal/metrics"
	"github.com/afrinexa/portal/internal/observability/logger"
)

// Type es el tipo de asistencia pedido.
type Type string

const (
	TypeOutline  Type = "outline"
	TypeExpand   Type = "expand"
	TypeHeadline Type = "headline"
)

const excerptLen = 160

// Request es el body de entrada.
type Request struct {
	Type    Type
	Title   string
	Content string
}

// Response: outline/expand usan Content; headline usa Title y Excerpt.
type Response struct {
	Type    Type
	Content string
	Title   string
	Excerpt string
}

// Service ejecuta una asistencia. Asume que el llamador ya pasó el guard de admin.
type Service struct {
	gw      Gateway
	metrics *metrics.Metrics
}

// NewService crea el servicio. m puede ser nil.
func NewService(gw Gateway, m *metrics.Metrics) *Service {
	return &Service{gw: gw, metrics: m}
}

// Validate chequea type y campos requeridos.
func (r Request) Validate() error {
	switch r.Type {
	case TypeOutline:
		if strings.TrimSpace(r.Title) == "" {
			return fmt.Errorf("%w: title is required for outline", ErrInvalidRequest)
		}
	case TypeExpand, TypeHeadline:
		if strings.TrimSpace(r.Content) == "" {
			return fmt.Errorf("%w: content is required for %s", ErrInvalidRequest, r.Type)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRequest, r.Type)
	}
	return nil
}

// Assist valida, llama al gateway y da forma a la respuesta.
func (s *Service) Assist(ctx context.Context, req Request) (*Response, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("aiassist"), logger.Op("Assist"))

	if err := req.Validate(); err != nil {
		return nil, err
	}

	log.Info("processing ai request", logger.String("type", string(req.Type)))
	system, user := prompts(req)
	out, err := s.gw.Complete(ctx, system, user)
	s.metrics.AIGatewayRequest(string(req.Type), statusOf(err))
	if err != nil {
		log.Error("ai gateway error", logger.Err(err))
		return nil, err
	}

	if req.Type != TypeHeadline {
		return &Response{Type: req.Type, Content: out}, nil
	}
	return parseHeadline(req.Title, out), nil
}

func statusOf(err error) int {
	if err == nil {
		return 200
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// parseHeadline toma el primer objeto JSON del texto del modelo.
// Si no hay uno válido responde con el título pedido y los primeros 160 caracteres.
func parseHeadline(title, out string) *Response {
	if m := jsonObject.FindString(out); m != "" {
		var parsed struct {
			Title   string `json:"title"`
			Excerpt string `json:"excerpt"`
		}
		if err := json.Unmarshal([]byte(m), &parsed); err == nil {
			return &Response{Type: TypeHeadline, Title: parsed.Title, Excerpt: parsed.Excerpt}
		}
	}
	return &Response{Type: TypeHeadline, Title: title, Excerpt: truncate(out, excerptLen)}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
