package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TxManager доступ к Postgres для журнала сделок.
type TxManager interface {
	// RunMaster fn в транзакции ReadCommitted.
	RunMaster(ctx context.Context, fn func(ctxTx context.Context, tx Transaction) error) error
	// Conn запросы вне транзакции, например DDL схемы.
	Conn() Transaction
}

// Transaction общее у pgx.Tx и пула.
type Transaction interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}
