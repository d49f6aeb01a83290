// Package sqlstore implements storage.Store on database/sql. The SQLite and
// PostgreSQL packages open the database, apply their schema and hand the
// connection to New together with their Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	// Name is used in logs.
	Name string

	// NumberedPlaceholders rewrites `?` to `$1, $2, ...`.
	NumberedPlaceholders bool
}

// SQLite is the dialect of modernc.org/sqlite.
var SQLite = Dialect{Name: "sqlite"}

// Postgres is the dialect of github.com/lib/pq.
var Postgres = Dialect{Name: "postgres", NumberedPlaceholders: true}

// rebind converts a query written with `?` placeholders to the dialect.
func (d Dialect) rebind(query string) string {
	if !d.NumberedPlaceholders {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements storage.Queries on top of a dbtx.
type queries struct {
	db      dbtx
	dialect Dialect
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.rebind(query), args...)
}

// execAffected runs a statement and reports whether exactly one row changed.
func (q *queries) execAffected(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return false, apperr.Store(op, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Store(op, err)
	}
	return rows == 1, nil
}

// Store implements storage.Store using database/sql.
type Store struct {
	*queries
	db *sql.DB
}

// New wraps an opened database whose schema is already in place.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		queries: &queries{db: db, dialect: dialect},
		db:      db,
	}
}

// DB exposes the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn inside a transaction.
func (s *Store) InTx(ctx context.Context, fn func(q storage.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{db: tx, dialect: s.queries.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperr.Store("failed to commit transaction", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func errNoRows(err error, entity, id string) error {
	if err == sql.ErrNoRows {
		return apperr.NotFound(entity, id)
	}
	return apperr.Store(fmt.Sprintf("failed to get %s", entity), err)
}
