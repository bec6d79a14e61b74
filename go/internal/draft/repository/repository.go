// Package repository is the SQL-backed draft ledger. It runs on Postgres
// (lib/pq or pgx) and on SQLite, and is the only code that writes pick rows.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/mcdev12/pooldraft/go/internal/dbconfig"
	"github.com/mcdev12/pooldraft/go/internal/sqlutil"
)

// DefaultNotifyChannel is the Postgres channel outbox inserts are announced on.
const DefaultNotifyChannel = "draft_outbox_events"

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries binds statements to a connection or transaction and rewrites the
// ? placeholders for the dialect in use.
type queries struct {
	db      querier
	dialect dialect
}

func (q *queries) rebind(query string) string {
	if q.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.rebind(query), args...)
}

type Repository struct {
	db            *sql.DB
	q             *queries
	dialect       dialect
	notifyChannel string
}

// NewRepository wraps an open database. driver is the name the database was
// opened with (see dbconfig).
func NewRepository(db *sql.DB, driver string) (*Repository, error) {
	var d dialect
	switch driver {
	case dbconfig.DriverPostgres, dbconfig.DriverPgx:
		d = dialectPostgres
	case dbconfig.DriverSQLite:
		d = dialectSQLite
	default:
		return nil, fmt.Errorf("unsupported driver for repository: %q", driver)
	}

	return &Repository{
		db:            db,
		q:             &queries{db: db, dialect: d},
		dialect:       d,
		notifyChannel: DefaultNotifyChannel,
	}, nil
}

// SetNotifyChannel changes the LISTEN/NOTIFY channel outbox inserts announce on.
func (r *Repository) SetNotifyChannel(channel string) {
	r.notifyChannel = channel
}

// DB returns the underlying handle, used by health checks.
func (r *Repository) DB() *sql.DB {
	return r.db
}

func (r *Repository) withTx(ctx context.Context, fn func(q *queries) error) error {
	return sqlutil.Run(ctx, r.db, func(tx *sql.Tx) *queries {
		return &queries{db: tx, dialect: r.dialect}
	}, fn)
}
