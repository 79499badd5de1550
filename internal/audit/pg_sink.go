package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer lo cumple *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PGSink inserta en admin_audit_events (migración 0002).
type PGSink struct {
	db Execer
}

// NewPGSink crea el sink.
func NewPGSink(db Execer) *PGSink { return &PGSink{db: db} }

const insertEventSQL = `
INSERT INTO admin_audit_events (event, outcome, user_id, email, path, request_id, detail, occurred_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8);`

func (s *PGSink) Write(ctx context.Context, e Event) error {
	_, err := s.db.Exec(ctx, insertEventSQL,
		e.Event, e.Outcome, e.UserID, e.Email, e.Path, e.RequestID, e.Detail, e.At)
	return err
}
