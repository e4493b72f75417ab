// Package persistence provides the transactional storage abstraction the workflow engine wraps runs in.
package persistence

import (
	"context"
	"database/sql"
)

// Querier is the subset of *sql.DB and *sql.Tx used by repositories.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Tx is one open unit of work. *sql.Tx satisfies it.
type Tx interface {
	Querier
	Commit() error
	Rollback() error
}

// UnitOfWork opens transactions. A run owns the Tx it begins exclusively.
type UnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}

type Persistence interface {
	UnitOfWork

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
