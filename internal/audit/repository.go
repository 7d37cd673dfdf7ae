package audit

import (
	"context"
	"database/sql"
)

// SQLRepo appends to the audit_events table. It only ever INSERTs.
type SQLRepo struct {
	db *sql.DB
}

func NewSQLRepo(db *sql.DB) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, call_id, external_call_id, platform_type, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	var meta sql.NullString
	if e.Metadata != "" {
		meta = sql.NullString{String: e.Metadata, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.CallID,
		e.ExternalCallID,
		e.PlatformType,
		e.Message,
		meta,
		e.CreatedAt,
	)
	return err
}
