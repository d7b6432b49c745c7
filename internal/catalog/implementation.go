// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"libraryloans/internal/apperr"
	"libraryloans/internal/journal"
)

// service implements the Service interface.
type service struct {
	store   Store
	journal journal.Journal
	logger  *zap.Logger
}

// NewService creates a new catalog service instance. A nil journal records
// nothing and a nil logger logs nothing.
func NewService(store Store, j journal.Journal, logger *zap.Logger) Service {
	if j == nil {
		j = journal.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		store:   store,
		journal: j,
		logger:  logger,
	}
}

// Save inserts a new book or overwrites an existing one, keeping ISBNs unique.
func (s *service) Save(ctx context.Context, book *Book) (*Book, error) {
	if book == nil {
		return nil, apperr.InvalidArgument("book must not be nil")
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}

	found, err := s.store.FindByISBN(ctx, book.ISBN)
	if err != nil {
		return nil, fmt.Errorf("failed to look up isbn: %w", err)
	}
	if err := checkIfIsbnAlreadyExists(book, found); err != nil {
		return nil, err
	}

	if book.ID == 0 {
		saved, err := s.store.Insert(ctx, *book)
		if err != nil {
			return nil, err
		}
		s.record(ctx, saved.ID, "BookCreated", BookCreatedEvent{
			ID:     saved.ID,
			Title:  saved.Title,
			Author: saved.Author,
			ISBN:   saved.ISBN,
		})
		return saved, nil
	}

	saved, err := s.store.Update(ctx, *book)
	if err != nil {
		return nil, err
	}
	s.record(ctx, saved.ID, "BookUpdated", BookUpdatedEvent{
		ID:     saved.ID,
		Title:  saved.Title,
		Author: saved.Author,
		ISBN:   saved.ISBN,
	})
	return saved, nil
}

func checkIfIsbnAlreadyExists(book, found *Book) error {
	if found != nil && (book.ID == 0 || found.ID != book.ID) {
		return apperr.Duplicate(MsgDuplicateISBN)
	}
	return nil
}

// FindByID returns the book with the given id, reporting whether it exists.
func (s *service) FindByID(ctx context.Context, id int64) (*Book, bool, error) {
	book, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get book %d: %w", id, err)
	}
	return book, book != nil, nil
}

// FindByIDRequired is FindByID with a NotFound error for missing books.
func (s *service) FindByIDRequired(ctx context.Context, id int64) (*Book, error) {
	book, ok, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound(MsgBookNotFound)
	}
	return book, nil
}

func (s *service) FindByISBN(ctx context.Context, isbn string) (*Book, bool, error) {
	book, err := s.store.FindByISBN(ctx, isbn)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get book by isbn %q: %w", isbn, err)
	}
	return book, book != nil, nil
}

func (s *service) FindByISBNRequired(ctx context.Context, isbn string) (*Book, error) {
	book, ok, err := s.FindByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound(MsgBookNotFound)
	}
	return book, nil
}

// Update overwrites an existing book. Last write wins.
func (s *service) Update(ctx context.Context, book *Book) (*Book, error) {
	if book == nil || book.ID == 0 {
		return nil, apperr.InvalidArgument(MsgInvalidBookID)
	}
	if _, err := s.FindByIDRequired(ctx, book.ID); err != nil {
		return nil, err
	}
	return s.Save(ctx, book)
}

// Delete removes a book by id.
func (s *service) Delete(ctx context.Context, id int64) error {
	if id == 0 {
		return apperr.InvalidArgument(MsgInvalidBookID)
	}
	book, err := s.FindByIDRequired(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, id, "BookDeleted", BookDeletedEvent{ID: id, ISBN: book.ISBN})
	return nil
}

// Find returns one page of the books matching query, ordered by id.
func (s *service) Find(ctx context.Context, query BookQuery, page PageRequest) (Page[Book], error) {
	page = page.Normalize()
	books, total, err := s.store.Find(ctx, query, page)
	if err != nil {
		return Page[Book]{}, fmt.Errorf("failed to search books: %w", err)
	}
	return NewPage(books, page, total), nil
}

// History returns the journaled changes of an existing book.
func (s *service) History(ctx context.Context, id int64) ([]journal.Entry, error) {
	if _, err := s.FindByIDRequired(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.journal.Load(ctx, AggregateTypeBook, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history of book %d: %w", id, err)
	}
	return entries, nil
}

// record journals a change. The write already happened, so a journal
// failure is logged and not returned.
func (s *service) record(ctx context.Context, id int64, eventType string, data any) {
	if err := s.journal.Record(ctx, AggregateTypeBook, id, eventType, data); err != nil {
		s.logger.Warn("failed to journal book change",
			zap.Int64("book_id", id),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
