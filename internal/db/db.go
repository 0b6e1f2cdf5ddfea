package db

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Open opens the sqlite file at path and makes sure the schema exists.
func Open(ctx context.Context, path string) (*sql.DB, *Queries, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	if _, err := conn.ExecContext(ctx, Schema); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, New(conn), nil
}
