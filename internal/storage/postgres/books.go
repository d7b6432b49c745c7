package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libraryloans/internal/apperr"
	"libraryloans/internal/catalog"
)

var bookColumns = []any{"id", "title", "author", "isbn"}

// BookStore implements catalog.Store.
type BookStore struct {
	db     *sqlx.DB
	tracer trace.Tracer
}

func NewBookStore(db *sqlx.DB) *BookStore {
	return &BookStore{db: db, tracer: tracer()}
}

func (s *BookStore) Insert(ctx context.Context, book catalog.Book) (*catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "books.insert",
		trace.WithAttributes(attribute.String("book.isbn", book.ISBN)),
	)
	defer span.End()

	query, args, err := dialect.Insert(tableBooks).
		Rows(goqu.Record{"title": book.Title, "author": book.Author, "isbn": book.ISBN}).
		Returning(bookColumns...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build insert book query: %w", err)
	}

	var saved catalog.Book
	if err := s.db.GetContext(ctx, &saved, query, args...); err != nil {
		return nil, mapBookWriteError("insert book", err)
	}

	span.SetAttributes(attribute.Int64("book.id", saved.ID))
	return &saved, nil
}

func (s *BookStore) Update(ctx context.Context, book catalog.Book) (*catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "books.update",
		trace.WithAttributes(attribute.Int64("book.id", book.ID)),
	)
	defer span.End()

	query, args, err := dialect.Update(tableBooks).
		Set(goqu.Record{"title": book.Title, "author": book.Author, "isbn": book.ISBN}).
		Where(goqu.C("id").Eq(book.ID)).
		Returning(bookColumns...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build update book query: %w", err)
	}

	var saved catalog.Book
	if err := s.db.GetContext(ctx, &saved, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound(catalog.MsgBookNotFound)
		}
		return nil, mapBookWriteError("update book", err)
	}
	return &saved, nil
}

func (s *BookStore) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "books.delete",
		trace.WithAttributes(attribute.Int64("book.id", id)),
	)
	defer span.End()

	query, args, err := dialect.Delete(tableBooks).
		Where(goqu.C("id").Eq(id)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete book query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if code, constraint, ok := violation(err); ok && code == codeForeignKeyViolation && constraint == constraintLoansBookFK {
			return apperr.Wrap(apperr.KindConflict, catalog.MsgBookHasLoans, err)
		}
		return fmt.Errorf("delete book %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return apperr.NotFound(catalog.MsgBookNotFound)
	}
	return nil
}

func (s *BookStore) FindByID(ctx context.Context, id int64) (*catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "books.find_by_id",
		trace.WithAttributes(attribute.Int64("book.id", id)),
	)
	defer span.End()

	return s.findOne(ctx, goqu.C("id").Eq(id))
}

func (s *BookStore) FindByISBN(ctx context.Context, isbn string) (*catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "books.find_by_isbn",
		trace.WithAttributes(attribute.String("book.isbn", isbn)),
	)
	defer span.End()

	return s.findOne(ctx, goqu.C("isbn").Eq(isbn))
}

func (s *BookStore) findOne(ctx context.Context, where exp.Expression) (*catalog.Book, error) {
	query, args, err := dialect.From(tableBooks).
		Select(bookColumns...).
		Where(where).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select book query: %w", err)
	}

	var book catalog.Book
	if err := s.db.GetContext(ctx, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select book: %w", err)
	}
	return &book, nil
}

// Find counts every match of query and loads the requested page, ordered by id.
func (s *BookStore) Find(ctx context.Context, query catalog.BookQuery, page catalog.PageRequest) ([]catalog.Book, int64, error) {
	ctx, span := s.tracer.Start(ctx, "books.find",
		trace.WithAttributes(
			attribute.Int("query.conditions", len(query.Conditions())),
			attribute.Int("page.number", page.Number),
			attribute.Int("page.size", page.Size),
		),
	)
	defer span.End()

	filtered := dialect.From(tableBooks).Where(conditionExpressions(query)...)

	countSQL, countArgs, err := filtered.Select(goqu.L("COUNT(*)")).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count books query: %w", err)
	}

	var total int64
	if err := s.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	selectSQL, selectArgs, err := filtered.
		Select(bookColumns...).
		Order(goqu.C("id").Asc()).
		Limit(uint(page.Size)).
		Offset(uint(page.Offset())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build select books query: %w", err)
	}

	books := []catalog.Book{}
	if err := s.db.SelectContext(ctx, &books, selectSQL, selectArgs...); err != nil {
		return nil, 0, fmt.Errorf("select books: %w", err)
	}

	span.SetAttributes(attribute.Int64("books.total", total), attribute.Int("books.loaded", len(books)))
	return books, total, nil
}

func conditionExpressions(query catalog.BookQuery) []exp.Expression {
	exprs := make([]exp.Expression, 0, len(query.Conditions()))
	for _, c := range query.Conditions() {
		column := goqu.C(string(c.Field))
		if c.Mode == catalog.MatchExact {
			exprs = append(exprs, column.Eq(c.Value))
			continue
		}
		exprs = append(exprs, column.ILike("%"+escapeLike(c.Value)+"%"))
	}
	return exprs
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes value match literally inside a LIKE pattern.
func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

func mapBookWriteError(op string, err error) error {
	if code, constraint, ok := violation(err); ok && code == codeUniqueViolation && constraint == constraintBooksISBN {
		return apperr.Wrap(apperr.KindDuplicate, catalog.MsgDuplicateISBN, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
