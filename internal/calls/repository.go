package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NOTE: This repository assumes the call_logs table from migrations/0001_init.sql.
// vapi_call_id carries a UNIQUE constraint.

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is the Postgres call-log store.
type SQLStore struct {
	db    DBTX
	lock  bool
	clock func() time.Time
}

// NewSQLStore returns a store for reads outside a transaction.
func NewSQLStore(db DBTX) *SQLStore {
	return &SQLStore{db: db, clock: time.Now}
}

// NewTxStore returns a store bound to tx. Lookups lock the returned row
// (SELECT ... FOR UPDATE) so only one transaction mutates a call at a time.
func NewTxStore(tx *sql.Tx) *SQLStore {
	return &SQLStore{db: tx, lock: true, clock: time.Now}
}

const selectColumns = `
SELECT id, bill_id, vapi_call_id, customer_phone, status, outcome,
       started_at, ended_at, duration, transcript, recording_url, transcript_url,
       ended_reason, sms_sent, sms_sid, error_message, created_at, updated_at
FROM call_logs`

func (s *SQLStore) forUpdate(q string) string {
	if s.lock {
		return q + "\nFOR UPDATE"
	}
	return q
}

func (s *SQLStore) FindByID(ctx context.Context, id int64) (Record, error) {
	q := s.forUpdate(selectColumns + "\nWHERE id = $1")
	return scanOne(s.db.QueryRowContext(ctx, q, id))
}

func (s *SQLStore) FindByExternalID(ctx context.Context, externalID string) (Record, error) {
	q := s.forUpdate(selectColumns + "\nWHERE vapi_call_id = $1")
	return scanOne(s.db.QueryRowContext(ctx, q, externalID))
}

func (s *SQLStore) FindMostRecent(ctx context.Context) (Record, error) {
	q := s.forUpdate(selectColumns + "\nORDER BY created_at DESC, id DESC\nLIMIT 1")
	return scanOne(s.db.QueryRowContext(ctx, q))
}

func (s *SQLStore) Save(ctx context.Context, rec Record) error {
	const q = `
UPDATE call_logs SET
  vapi_call_id = $2,
  status = $3,
  outcome = $4,
  started_at = $5,
  ended_at = $6,
  duration = $7,
  transcript = $8,
  recording_url = $9,
  transcript_url = $10,
  ended_reason = $11,
  sms_sent = $12,
  sms_sid = $13,
  error_message = $14,
  updated_at = $15
WHERE id = $1
`
	var outcome sql.NullString
	if rec.Outcome != nil {
		outcome = sql.NullString{String: string(*rec.Outcome), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, q,
		rec.ID,
		nullStringPtr(rec.ExternalCallID),
		string(rec.Status),
		outcome,
		nullTime(rec.StartedAt),
		nullTime(rec.EndedAt),
		nullInt(rec.DurationSeconds),
		nullString(rec.Transcript),
		nullString(rec.RecordingURL),
		nullString(rec.TranscriptURL),
		nullString(rec.EndedReason),
		rec.SMSSent,
		nullString(rec.SMSReference),
		nullString(rec.ErrorMessage),
		s.clock().UTC(),
	)
	if err != nil {
		return fmt.Errorf("calls: save %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, f ListFilter) ([]Record, error) {
	f = f.withDefaults()

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.BillID != 0 {
		add("bill_id = $%d", f.BillID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}

	var b strings.Builder
	b.WriteString(selectColumns)
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, f.Limit, f.Offset)
	fmt.Fprintf(&b, "\nORDER BY created_at DESC, id DESC\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("calls: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row) (Record, error) {
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return r, nil
}

func scanRecord(sc scanner) (Record, error) {
	var r Record
	var status string
	var externalID, outcome, transcript, recordingURL, transcriptURL sql.NullString
	var endedReason, smsRef, errMsg sql.NullString
	var startedAt, endedAt sql.NullTime
	var duration sql.NullInt64
	if err := sc.Scan(
		&r.ID,
		&r.BillID,
		&externalID,
		&r.CustomerPhone,
		&status,
		&outcome,
		&startedAt,
		&endedAt,
		&duration,
		&transcript,
		&recordingURL,
		&transcriptURL,
		&endedReason,
		&r.SMSSent,
		&smsRef,
		&errMsg,
		&r.CreatedAt,
		&r.UpdatedAt,
	); err != nil {
		return Record{}, err
	}

	r.Status = Status(status)
	if externalID.Valid {
		r.ExternalCallID = &externalID.String
	}
	if outcome.Valid {
		o := Outcome(outcome.String)
		r.Outcome = &o
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		r.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		r.EndedAt = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		r.DurationSeconds = &d
	}
	r.Transcript = transcript.String
	r.RecordingURL = recordingURL.String
	r.TranscriptURL = transcriptURL.String
	r.EndedReason = endedReason.String
	r.SMSReference = smsRef.String
	r.ErrorMessage = errMsg.String
	return r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
