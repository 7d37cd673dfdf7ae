package bills

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore is the Postgres bill store.
type SQLStore struct {
	db       DBTX
	reminder time.Duration
}

func NewSQLStore(db DBTX, reminderInterval time.Duration) *SQLStore {
	if reminderInterval <= 0 {
		reminderInterval = DefaultReminderInterval
	}
	return &SQLStore{db: db, reminder: reminderInterval}
}

func (s *SQLStore) FindByID(ctx context.Context, id int64) (Bill, error) {
	const q = `
SELECT id, customer_name, customer_phone, bill_number, consumer_number, bill_amount,
       due_date, status, payment_link, call_attempts, last_call_date, next_reminder_date, notes
FROM bills
WHERE id = $1
`
	var b Bill
	var status string
	var consumer, link, notes sql.NullString
	var lastCall, nextReminder sql.NullTime
	if err := s.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID,
		&b.CustomerName,
		&b.CustomerPhone,
		&b.BillNumber,
		&consumer,
		&b.Amount,
		&b.DueDate,
		&status,
		&link,
		&b.CallAttempts,
		&lastCall,
		&nextReminder,
		&notes,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bill{}, ErrNotFound
		}
		return Bill{}, fmt.Errorf("bills: find %d: %w", id, err)
	}
	b.Status = Status(status)
	b.ConsumerNumber = consumer.String
	b.PaymentLink = link.String
	b.Notes = notes.String
	if lastCall.Valid {
		t := lastCall.Time.UTC()
		b.LastCallDate = &t
	}
	if nextReminder.Valid {
		t := nextReminder.Time.UTC()
		b.NextReminderDate = &t
	}
	return b, nil
}

func (s *SQLStore) MarkCalled(ctx context.Context, id int64, at time.Time) error {
	const q = `
UPDATE bills SET
  status = $2,
  call_attempts = call_attempts + 1,
  last_call_date = $3,
  next_reminder_date = $4
WHERE id = $1
`
	at = at.UTC()
	res, err := s.db.ExecContext(ctx, q, id, string(StatusCalled), at, at.Add(s.reminder))
	if err != nil {
		return fmt.Errorf("bills: mark called %d: %w", id, err)
	}
	return requireRow(res)
}

func (s *SQLStore) AppendNote(ctx context.Context, id int64, note string) error {
	const q = `
UPDATE bills SET
  notes = CASE WHEN notes IS NULL OR notes = '' THEN $2 ELSE notes || E'\n' || $2 END
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q, id, note)
	if err != nil {
		return fmt.Errorf("bills: append note %d: %w", id, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
