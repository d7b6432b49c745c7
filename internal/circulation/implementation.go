// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"libraryloans/internal/apperr"
	"libraryloans/internal/catalog"
	"libraryloans/internal/journal"
)

// service implements the Service interface.
type service struct {
	store   Store
	books   BookFinder
	journal journal.Journal
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new circulation service instance.
func NewService(store Store, books BookFinder, j journal.Journal, logger *zap.Logger) Service {
	if j == nil {
		j = journal.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		store:   store,
		books:   books,
		journal: j,
		logger:  logger,
		now:     time.Now,
	}
}

// Save persists a loan. The store refuses a second open loan for the book.
func (s *service) Save(ctx context.Context, loan *Loan) (*Loan, error) {
	if loan == nil || loan.Book.ID == 0 {
		return nil, apperr.InvalidArgument(MsgLoanBookRequired)
	}
	if strings.TrimSpace(loan.Customer) == "" {
		return nil, apperr.Validation(MsgCustomerRequired, apperr.FieldError{Name: "customer", Message: MsgCustomerRequired})
	}

	toSave := *loan
	if toSave.LoanDate.IsZero() {
		toSave.LoanDate = today(s.now())
	}

	saved, err := s.store.Insert(ctx, toSave)
	if err != nil {
		return nil, err
	}

	event := LoanCreatedEvent{
		LoanID:   saved.ID,
		BookID:   saved.Book.ID,
		ISBN:     saved.Book.ISBN,
		Customer: saved.Customer,
		LoanDate: saved.LoanDate,
	}
	if err := s.journal.Record(ctx, AggregateTypeLoan, saved.ID, "LoanCreated", event); err != nil {
		s.logger.Warn("failed to journal loan",
			zap.Int64("loan_id", saved.ID),
			zap.Int64("book_id", saved.Book.ID),
			zap.Error(err),
		)
	}

	return saved, nil
}

// IsBookAlreadyLoaned reports whether the book has an open loan.
func (s *service) IsBookAlreadyLoaned(ctx context.Context, book *catalog.Book) (bool, error) {
	if book == nil || book.ID == 0 {
		return false, apperr.InvalidArgument(catalog.MsgInvalidBookID)
	}
	loan, err := s.store.FindByBookAndReturned(ctx, book.ID, false)
	if err != nil {
		return false, fmt.Errorf("failed to look up open loan for book %d: %w", book.ID, err)
	}
	return loan != nil, nil
}

// Lend registers a loan of the book with the given isbn.
func (s *service) Lend(ctx context.Context, isbn, customer string) (*Loan, error) {
	book, err := s.books.FindByISBNRequired(ctx, isbn)
	if err != nil {
		return nil, err
	}

	loaned, err := s.IsBookAlreadyLoaned(ctx, book)
	if err != nil {
		return nil, err
	}
	if loaned {
		return nil, apperr.Conflict(MsgBookAlreadyLoaned)
	}

	return s.Save(ctx, &Loan{
		Customer: customer,
		Book:     *book,
	})
}

func today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
