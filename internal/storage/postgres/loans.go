package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libraryloans/internal/apperr"
	"libraryloans/internal/catalog"
	"libraryloans/internal/circulation"
)

// loanRow is a loan joined with its book; sqlx fills Book from "book.*" columns.
type loanRow struct {
	ID       int64        `db:"id"`
	Customer string       `db:"customer"`
	LoanDate time.Time    `db:"loan_date"`
	Returned bool         `db:"returned"`
	Book     catalog.Book `db:"book"`
}

func (r loanRow) toLoan() *circulation.Loan {
	return &circulation.Loan{
		ID:       r.ID,
		Customer: r.Customer,
		Book:     r.Book,
		LoanDate: r.LoanDate,
		Returned: r.Returned,
	}
}

var loanColumns = []any{
	goqu.L(`"l"."id" AS "id"`),
	goqu.L(`"l"."customer" AS "customer"`),
	goqu.L(`"l"."loan_date" AS "loan_date"`),
	goqu.L(`"l"."returned" AS "returned"`),
	goqu.L(`"b"."id" AS "book.id"`),
	goqu.L(`"b"."title" AS "book.title"`),
	goqu.L(`"b"."author" AS "book.author"`),
	goqu.L(`"b"."isbn" AS "book.isbn"`),
}

// LoanStore implements circulation.Store. The partial unique index
// loans_open_book_idx makes Insert reject a second open loan atomically.
type LoanStore struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

func NewLoanStore(db *sqlx.DB) *LoanStore {
	return &LoanStore{db: db, tracer: tracer()}
}

func (s *LoanStore) Insert(ctx context.Context, loan circulation.Loan) (*circulation.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "loans.insert",
		trace.WithAttributes(attribute.Int64("book.id", loan.Book.ID)),
	)
	defer span.End()

	insertSQL, insertArgs, err := dialect.Insert(tableLoans).
		Rows(goqu.Record{
			"customer":  loan.Customer,
			"book_id":   loan.Book.ID,
			"loan_date": loan.LoanDate,
			"returned":  loan.Returned,
		}).
		Returning("id").
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert loan query: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if err := tx.GetContext(ctx, &id, insertSQL, insertArgs...); err != nil {
		return nil, mapLoanWriteError(err)
	}

	row, err := s.selectOne(ctx, tx, goqu.I("l.id").Eq(id))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("loan %d vanished after insert", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", mapLoanWriteError(err))
	}

	span.SetAttributes(attribute.Int64("loan.id", id))
	return row.toLoan(), nil
}

// FindByBookAndReturned returns the oldest loan of the book in the given state.
func (s *LoanStore) FindByBookAndReturned(ctx context.Context, bookID int64, returned bool) (*circulation.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "loans.find_by_book_and_returned",
		trace.WithAttributes(
			attribute.Int64("book.id", bookID),
			attribute.Bool("loan.returned", returned),
		),
	)
	defer span.End()

	row, err := s.selectOne(ctx, s.db, goqu.I("l.book_id").Eq(bookID), goqu.I("l.returned").Eq(returned))
	if err != nil || row == nil {
		return nil, err
	}
	return row.toLoan(), nil
}

func (s *LoanStore) selectOne(ctx context.Context, q sqlx.QueryerContext, where ...exp.Expression) (*loanRow, error) {
	query, args, err := dialect.From(goqu.T(tableLoans).As("l")).
		Join(goqu.T(tableBooks).As("b"), goqu.On(goqu.I("l.book_id").Eq(goqu.I("b.id")))).
		Select(loanColumns...).
		Where(where...).
		Order(goqu.I("l.id").Asc()).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select loan query: %w", err)
	}

	var row loanRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select loan: %w", err)
	}
	return &row, nil
}

func mapLoanWriteError(err error) error {
	code, constraint, ok := violation(err)
	switch {
	case ok && code == codeUniqueViolation && constraint == indexOpenLoanPerBook:
		return apperr.Wrap(apperr.KindConflict, circulation.MsgBookAlreadyLoaned, err)
	case ok && code == codeForeignKeyViolation && constraint == constraintLoansBookFK:
		return apperr.Wrap(apperr.KindNotFound, catalog.MsgBookNotFound, err)
	}
	return fmt.Errorf("insert loan: %w", err)
}
