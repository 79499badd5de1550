// Package aiassist contiene el controller de la función de asistencia del blog.
package aiassist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	svc "github.com/afrinexa/portal/internal/aiassist"
	httperrors "github.com/afrinexa/portal/internal/http/errors"
	"github.com/afrinexa/portal/internal/observability/logger"
	"go.uber.org/zap"
)

const maxBody = 256 << 10 // los borradores del blog llegan completos

// Assister lo cumple *aiassist.Service.
type Assister interface {
	Assist(ctx context.Context, req svc.Request) (*svc.Response, error)
}

// Controller maneja POST /functions/v1/blog-ai-assist.
// Requiere: RequireAdmin antes en la cadena.
type Controller struct {
	service Assister
}

// NewController crea el controller.
func NewController(s Assister) *Controller {
	return &Controller{service: s}
}

type assistRequest struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

type contentResponse struct {
	Content string `json:"content"`
}

type headlineResponse struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// Assist maneja el POST.
func (c *Controller) Assist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("aiassist.assist"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	var req assistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			httperrors.WriteError(w, httperrors.ErrBodyTooLarge)
		case errors.Is(err, io.EOF):
			httperrors.WriteError(w, httperrors.ErrInvalidJSON.WithDetail("empty body"))
		default:
			httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		}
		return
	}

	res, err := c.service.Assist(ctx, svc.Request{
		Type:    svc.Type(req.Type),
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		c.handleServiceError(w, err, log)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if res.Type == svc.TypeHeadline {
		_ = json.NewEncoder(w).Encode(headlineResponse{Title: res.Title, Excerpt: res.Excerpt})
		return
	}
	_ = json.NewEncoder(w).Encode(contentResponse{Content: res.Content})
}

func (c *Controller) handleServiceError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, svc.ErrInvalidRequest):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail(err.Error()))
	case errors.Is(err, svc.ErrRateLimited):
		httperrors.WriteError(w, httperrors.ErrRateLimitExceeded)
	case errors.Is(err, svc.ErrQuotaExhausted):
		httperrors.WriteError(w, httperrors.ErrQuotaExhausted)
	default:
		log.Error("unexpected error", zap.Error(err))
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
	}
}
