package postgres

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryloans/internal/apperr"
	"libraryloans/internal/catalog"
	"libraryloans/internal/circulation"
)

// setupTestDB connects to the PG* database and skips the test when it is unreachable.
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("PGHOST", "localhost"),
		envOr("PGPORT", "5432"),
		envOr("PGUSER", "user"),
		envOr("PGPASSWORD", "password"),
		envOr("PGDATABASE", "testdb"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Open(ctx, Options{DSN: dsn, MaxOpenConns: 10, MaxIdleConns: 2})
	if err != nil {
		t.Skipf("skipping postgres tests: %v", err)
	}
	require.NoError(t, Migrate(ctx, db))
	_, err = db.ExecContext(ctx, `TRUNCATE TABLE loans, books RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestBookStore_CRUD(t *testing.T) {
	books := NewBookStore(setupTestDB(t))
	ctx := context.Background()

	saved, err := books.Insert(ctx, catalog.Book{Title: "As aventuras", Author: "Artur", ISBN: "123456"})
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	byISBN, err := books.FindByISBN(ctx, "123456")
	require.NoError(t, err)
	assert.Equal(t, saved, byISBN)

	saved.Title = "As novas aventuras"
	updated, err := books.Update(ctx, *saved)
	require.NoError(t, err)
	assert.Equal(t, "As novas aventuras", updated.Title)

	require.NoError(t, books.Delete(ctx, saved.ID))

	gone, err := books.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.ErrorIs(t, books.Delete(ctx, saved.ID), apperr.ErrNotFound)
	_, err = books.Update(ctx, *saved)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBookStore_DuplicateISBN(t *testing.T) {
	books := NewBookStore(setupTestDB(t))
	ctx := context.Background()

	_, err := books.Insert(ctx, catalog.Book{Title: "A", Author: "B", ISBN: "1"})
	require.NoError(t, err)
	other, err := books.Insert(ctx, catalog.Book{Title: "C", Author: "D", ISBN: "2"})
	require.NoError(t, err)

	_, err = books.Insert(ctx, catalog.Book{Title: "E", Author: "F", ISBN: "1"})
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	other.ISBN = "1"
	_, err = books.Update(ctx, *other)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)
}

func TestBookStore_Find(t *testing.T) {
	books := NewBookStore(setupTestDB(t))
	ctx := context.Background()

	for _, b := range []catalog.Book{
		{Title: "As aventuras", Author: "Artur", ISBN: "1"},
		{Title: "AVENIDA 100%", Author: "Beatriz", ISBN: "2"},
		{Title: "Memórias", Author: "Aventino", ISBN: "3"},
	} {
		_, err := books.Insert(ctx, b)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		query  catalog.BookQuery
		titles []string
	}{
		{name: "title contains", query: catalog.NewBookQuery().Contains(catalog.FieldTitle, "aven"), titles: []string{"As aventuras", "AVENIDA 100%"}},
		{name: "author contains", query: catalog.NewBookQuery().Contains(catalog.FieldAuthor, "AVEN"), titles: []string{"Memórias"}},
		{name: "isbn exact", query: catalog.NewBookQuery().Equals(catalog.FieldISBN, "2"), titles: []string{"AVENIDA 100%"}},
		{name: "literal percent", query: catalog.NewBookQuery().Contains(catalog.FieldTitle, "0%"), titles: []string{"AVENIDA 100%"}},
		{name: "literal underscore", query: catalog.NewBookQuery().Contains(catalog.FieldTitle, "_"), titles: []string{}},
		{name: "no conditions", query: catalog.NewBookQuery(), titles: []string{"As aventuras", "AVENIDA 100%", "Memórias"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, total, err := books.Find(ctx, tt.query, catalog.PageRequest{Size: 10})
			require.NoError(t, err)

			titles := make([]string, 0, len(found))
			for _, b := range found {
				titles = append(titles, b.Title)
			}
			assert.Equal(t, tt.titles, titles)
			assert.EqualValues(t, len(tt.titles), total)
		})
	}

	page, total, err := books.Find(ctx, catalog.NewBookQuery(), catalog.PageRequest{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "Memórias", page[0].Title)
}

func TestLoanStore_InsertAndFind(t *testing.T) {
	db := setupTestDB(t)
	books := NewBookStore(db)
	loans := NewLoanStore(db)
	ctx := context.Background()

	book, err := books.Insert(ctx, catalog.Book{Title: "A", Author: "B", ISBN: "1"})
	require.NoError(t, err)

	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	loan, err := loans.Insert(ctx, circulation.Loan{Customer: "Fulano", Book: catalog.Book{ID: book.ID}, LoanDate: date})
	require.NoError(t, err)
	assert.NotZero(t, loan.ID)
	assert.Equal(t, *book, loan.Book)
	assert.Equal(t, "2024-05-10", loan.LoanDate.Format("2006-01-02"))

	open, err := loans.FindByBookAndReturned(ctx, book.ID, false)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, loan.ID, open.ID)

	returned, err := loans.FindByBookAndReturned(ctx, book.ID, true)
	require.NoError(t, err)
	assert.Nil(t, returned)

	_, err = loans.Insert(ctx, circulation.Loan{Customer: "Ciclano", Book: *book, LoanDate: date})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = loans.Insert(ctx, circulation.Loan{Customer: "Ciclano", Book: catalog.Book{ID: book.ID + 99}, LoanDate: date})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, books.Delete(ctx, book.ID), apperr.ErrConflict)
}

func TestLoanStore_ConcurrentLoansOnlyOneWins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	book, err := NewBookStore(db).Insert(ctx, catalog.Book{Title: "A", Author: "B", ISBN: "1"})
	require.NoError(t, err)
	loans := NewLoanStore(db)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := loans.Insert(ctx, circulation.Loan{Customer: fmt.Sprintf("c%d", i), Book: *book, LoanDate: time.Now()})
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\dir`, escapeLike(`c:\dir`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
