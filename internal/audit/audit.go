// Package audit registra las decisiones de autorización del guard de administración.
// Un Event nunca lleva la credencial; sólo quién, qué y cuándo.
package audit

import (
	"context"
	"time"

	"github.com/afrinexa/portal/internal/observability/logger"
	"go.uber.org/zap"
)

// Eventos.
const (
	EventAdminGuard = "admin_guard"
)

// Event es una decisión auditada.
type Event struct {
	Event     string
	Outcome   string
	UserID    string
	Email     string
	Path      string
	RequestID string
	Detail    string
	At        time.Time
}

// Sink persiste eventos.
type Sink interface {
	Write(ctx context.Context, e Event) error
}

// Auditor completa el timestamp y reparte a los sinks. Nunca falla al llamador:
// un sink caído se loguea y el request sigue su curso con la decisión ya tomada.
type Auditor struct {
	sinks []Sink
	now   func() time.Time
}

// New crea un Auditor. Sin sinks usa LogSink.
func New(sinks ...Sink) *Auditor {
	if len(sinks) == 0 {
		sinks = []Sink{LogSink{}}
	}
	return &Auditor{sinks: sinks, now: time.Now}
}

// Record escribe e en todos los sinks.
func (a *Auditor) Record(ctx context.Context, e Event) {
	if a == nil {
		return
	}
	if e.At.IsZero() {
		e.At = a.now().UTC()
	}
	for _, s := range a.sinks {
		if err := s.Write(ctx, e); err != nil {
			logger.From(ctx).Error("audit sink failed",
				logger.Component("audit"),
				logger.Event(e.Event),
				logger.Err(err),
			)
		}
	}
}

// LogSink escribe el evento en el logger del request.
type LogSink struct{}

func (LogSink) Write(ctx context.Context, e Event) error {
	fields := []zap.Field{
		logger.Event(e.Event),
		logger.Outcome(e.Outcome),
		logger.UserID(e.UserID),
		logger.Email(e.Email),
		logger.String("detail", e.Detail),
		logger.String("at", e.At.Format(time.RFC3339Nano)),
	}
	// el logger del request ya lleva path y request_id
	if !logger.RequestScoped(ctx) {
		fields = append(fields, logger.Path(e.Path), logger.RequestID(e.RequestID))
	}
	logger.From(ctx).Info("audit", fields...)
	return nil
}
