// Package postgres implements the book and loan stores on PostgreSQL using
// sqlx for execution and goqu for statement building.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"libraryloans/internal/journal"
)

const (
	tableBooks = "books"
	tableLoans = "loans"

	constraintBooksISBN   = "books_isbn_key"
	constraintLoansBookFK = "loans_book_id_fkey"
	indexOpenLoanPerBook  = "loans_open_book_idx"

	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

var dialect = goqu.Dialect("postgres")

func tracer() trace.Tracer {
	return otel.Tracer("libraryloans/storage/postgres")
}

// Schema creates the tables and constraints the stores rely on.
const Schema = `
CREATE TABLE IF NOT EXISTS books (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	author TEXT NOT NULL,
	isbn TEXT NOT NULL,
	CONSTRAINT books_isbn_key UNIQUE (isbn)
);

CREATE TABLE IF NOT EXISTS loans (
	id BIGSERIAL PRIMARY KEY,
	customer TEXT NOT NULL,
	book_id BIGINT NOT NULL,
	loan_date DATE NOT NULL,
	returned BOOLEAN NOT NULL DEFAULT FALSE,
	CONSTRAINT loans_book_id_fkey FOREIGN KEY (book_id) REFERENCES books (id)
);

CREATE UNIQUE INDEX IF NOT EXISTS loans_open_book_idx ON loans (book_id) WHERE NOT returned;
`

// Options configures the connection pool.
type Options struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open connects to Postgres, applies the pool settings and pings the server.
func Open(ctx context.Context, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the book, loan and journal tables if they are missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create store schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, journal.Schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// violation reports the Postgres error code and constraint behind err.
func violation(err error) (code, constraint string, ok bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", "", false
	}
	return string(pqErr.Code), pqErr.Constraint, true
}
