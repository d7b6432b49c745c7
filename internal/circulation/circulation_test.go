package circulation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryloans/internal/apperr"
	"libraryloans/internal/catalog"
	"libraryloans/internal/circulation"
	"libraryloans/internal/journal"
	"libraryloans/internal/storage/memory"
)

type fixture struct {
	db      *memory.Database
	books   catalog.Service
	loans   circulation.Service
	journal *journal.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	j := journal.NewMemory()
	books := catalog.NewService(db.Books(), j, nil)
	return &fixture{
		db:      db,
		books:   books,
		loans:   circulation.NewService(db.Loans(), books, j, nil),
		journal: j,
	}
}

func (f *fixture) book(t *testing.T, isbn string) *catalog.Book {
	t.Helper()
	b, err := f.books.Save(context.Background(), &catalog.Book{Title: "As aventuras", Author: "Artur", ISBN: isbn})
	require.NoError(t, err)
	return b
}

func TestSave(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "123")

	before := time.Now().UTC()
	loan, err := f.loans.Save(context.Background(), &circulation.Loan{Customer: "Fulano", Book: *book})
	require.NoError(t, err)

	assert.NotZero(t, loan.ID)
	assert.Equal(t, "Fulano", loan.Customer)
	assert.Equal(t, *book, loan.Book)
	assert.False(t, loan.Returned)

	y, m, d := before.Date()
	assert.Equal(t, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), loan.LoanDate)
}

func TestSave_KeepsExplicitLoanDate(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "123")

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	loan, err := f.loans.Save(context.Background(), &circulation.Loan{Customer: "Fulano", Book: *book, LoanDate: date})
	require.NoError(t, err)
	assert.Equal(t, date, loan.LoanDate)
}

func TestSave_Invalid(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "123")
	ctx := context.Background()

	tests := []struct {
		name string
		loan *circulation.Loan
		kind apperr.Kind
	}{
		{name: "nil loan", loan: nil, kind: apperr.KindInvalidArgument},
		{name: "no book", loan: &circulation.Loan{Customer: "Fulano"}, kind: apperr.KindInvalidArgument},
		{name: "blank customer", loan: &circulation.Loan{Customer: "  ", Book: *book}, kind: apperr.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.loans.Save(ctx, tt.loan)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestSave_SecondOpenLoanConflicts(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "123")
	ctx := context.Background()

	_, err := f.loans.Save(ctx, &circulation.Loan{Customer: "Fulano", Book: *book})
	require.NoError(t, err)

	// Save skips the IsBookAlreadyLoaned pre-check; the store still refuses.
	_, err = f.loans.Save(ctx, &circulation.Loan{Customer: "Ciclano", Book: *book})
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindConflict, appErr.Kind)
	assert.Equal(t, circulation.MsgBookAlreadyLoaned, appErr.Message)
}

func TestIsBookAlreadyLoaned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	free := f.book(t, "1")
	lent := f.book(t, "2")
	returned := f.book(t, "3")

	_, err := f.db.Loans().Insert(ctx, circulation.Loan{Customer: "Fulano", Book: *lent, LoanDate: time.Now()})
	require.NoError(t, err)
	_, err = f.db.Loans().Insert(ctx, circulation.Loan{Customer: "Fulano", Book: *returned, LoanDate: time.Now(), Returned: true})
	require.NoError(t, err)

	tests := []struct {
		name string
		book *catalog.Book
		want bool
	}{
		{name: "never lent", book: free, want: false},
		{name: "open loan", book: lent, want: true},
		{name: "only returned loans", book: returned, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.loans.IsBookAlreadyLoaned(ctx, tt.book)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsBookAlreadyLoaned_InvalidBook(t *testing.T) {
	f := newFixture(t)

	_, err := f.loans.IsBookAlreadyLoaned(context.Background(), nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.loans.IsBookAlreadyLoaned(context.Background(), &catalog.Book{})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestIsBookAlreadyLoaned_StoreFailure(t *testing.T) {
	boom := errors.New("timeout")
	svc := circulation.NewService(failingLoanStore{err: boom}, nil, nil, nil)

	_, err := svc.IsBookAlreadyLoaned(context.Background(), &catalog.Book{ID: 1})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}

func TestLend(t *testing.T) {
	f := newFixture(t)
	book := f.book(t, "123")
	ctx := context.Background()

	loan, err := f.loans.Lend(ctx, "123", "Fulano")
	require.NoError(t, err)
	assert.Equal(t, book.ID, loan.Book.ID)
	assert.Equal(t, "Fulano", loan.Customer)

	entries, err := f.journal.Load(ctx, circulation.AggregateTypeLoan, loan.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "LoanCreated", entries[0].EventType)
}

func TestLend_UnknownISBN(t *testing.T) {
	f := newFixture(t)

	_, err := f.loans.Lend(context.Background(), "nope", "Fulano")
	require.Error(t, err)

	appErr, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
	assert.Equal(t, catalog.MsgBookNotFound, appErr.Message)
}

func TestLend_AlreadyLoaned(t *testing.T) {
	f := newFixture(t)
	f.book(t, "123")
	ctx := context.Background()

	_, err := f.loans.Lend(ctx, "123", "Fulano")
	require.NoError(t, err)

	_, err = f.loans.Lend(ctx, "123", "Ciclano")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

type failingLoanStore struct {
	err error
}

func (s failingLoanStore) Insert(context.Context, circulation.Loan) (*circulation.Loan, error) {
	return nil, s.err
}

func (s failingLoanStore) FindByBookAndReturned(context.Context, int64, bool) (*circulation.Loan, error) {
	return nil, s.err
}
