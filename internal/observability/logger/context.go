package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

type requestKey struct{}

// ToContext inyecta un logger "scoped" en el contexto (lo usa WithLogging).
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// ToRequestContext es ToContext para el logger del request: l ya lleva
// request_id, method y path.
func ToRequestContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ToContext(ctx, l), requestKey{}, true)
}

// RequestScoped indica si el logger del contexto ya trae los campos del request.
func RequestScoped(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(requestKey{}).(bool)
	return v
}

// From extrae el logger del contexto; si no hay, retorna el global.
func From(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return L()
}
