package storage

import (
	"context"
	"database/sql"
	"time"

	"collections-platform/internal/bills"
	"collections-platform/internal/calls"
	"collections-platform/pkg/utils"
)

// Repos are the stores visible inside one unit of work.
type Repos struct {
	Calls calls.Store
	Bills bills.Store
}

// UnitOfWork runs fn atomically: either every write fn made through Repos
// is committed, or none is.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// SQLUnitOfWork runs each unit in one Postgres transaction.
type SQLUnitOfWork struct {
	db       *sql.DB
	reminder time.Duration
}

func NewSQLUnitOfWork(db *sql.DB, reminderInterval time.Duration) *SQLUnitOfWork {
	return &SQLUnitOfWork{db: db, reminder: reminderInterval}
}

func (u *SQLUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	return utils.WithTx(ctx, u.db, &sql.TxOptions{Isolation: sql.LevelReadCommitted}, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, Repos{
			Calls: calls.NewTxStore(tx),
			Bills: bills.NewSQLStore(tx, u.reminder),
		})
	})
}
