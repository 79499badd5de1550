package middlewares

import (
	"context"

	"github.com/afrinexa/portal/internal/identity"
)

type ctxKey string

const (
	// ctxIdentityKey guarda la identidad admitida por RequireAdmin
	ctxIdentityKey ctxKey = "identity"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// WithIdentity inyecta la identidad autorizada en el contexto.
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetIdentity obtiene la identidad admitida.
// Retorna nil fuera de una ruta protegida por RequireAdmin.
func GetIdentity(ctx context.Context) *identity.Identity {
	if v, ok := ctx.Value(ctxIdentityKey).(*identity.Identity); ok {
		return v
	}
	return nil
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return s
	}
	return ""
}
