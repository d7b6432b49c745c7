// Package memory provides mutex-guarded in-process stores for books and
// loans. They enforce the same constraints as the Postgres schema: unique
// ISBNs, loans referencing existing books, and at most one open loan per book.
package memory

import (
	"context"
	"sort"
	"sync"

	"libraryloans/internal/apperr"
	"libraryloans/internal/catalog"
	"libraryloans/internal/circulation"
)

// Database holds the shared state behind BookStore and LoanStore.
type Database struct {
	mu         sync.RWMutex
	books      map[int64]catalog.Book
	loans      map[int64]circulation.Loan
	nextBookID int64
	nextLoanID int64
}

func New() *Database {
	return &Database{
		books: make(map[int64]catalog.Book),
		loans: make(map[int64]circulation.Loan),
	}
}

// Books returns the catalog.Store view of db.
func (db *Database) Books() *BookStore {
	return &BookStore{db: db}
}

// Loans returns the circulation.Store view of db.
func (db *Database) Loans() *LoanStore {
	return &LoanStore{db: db}
}

// PingContext always succeeds.
func (db *Database) PingContext(context.Context) error {
	return nil
}

// BookStore implements catalog.Store.
type BookStore struct {
	db *Database
}

func (s *BookStore) Insert(_ context.Context, book catalog.Book) (*catalog.Book, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, taken := s.db.bookByISBN(book.ISBN); taken {
		return nil, apperr.Duplicate(catalog.MsgDuplicateISBN)
	}

	s.db.nextBookID++
	book.ID = s.db.nextBookID
	s.db.books[book.ID] = book
	return &book, nil
}

func (s *BookStore) Update(_ context.Context, book catalog.Book) (*catalog.Book, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.books[book.ID]; !ok {
		return nil, apperr.NotFound(catalog.MsgBookNotFound)
	}
	if other, taken := s.db.bookByISBN(book.ISBN); taken && other.ID != book.ID {
		return nil, apperr.Duplicate(catalog.MsgDuplicateISBN)
	}

	s.db.books[book.ID] = book
	return &book, nil
}

func (s *BookStore) Delete(_ context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.books[id]; !ok {
		return apperr.NotFound(catalog.MsgBookNotFound)
	}
	for _, loan := range s.db.loans {
		if loan.Book.ID == id {
			return apperr.Conflict(catalog.MsgBookHasLoans)
		}
	}

	delete(s.db.books, id)
	return nil
}

func (s *BookStore) FindByID(_ context.Context, id int64) (*catalog.Book, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	book, ok := s.db.books[id]
	if !ok {
		return nil, nil
	}
	return &book, nil
}

func (s *BookStore) FindByISBN(_ context.Context, isbn string) (*catalog.Book, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	book, ok := s.db.bookByISBN(isbn)
	if !ok {
		return nil, nil
	}
	return &book, nil
}

func (s *BookStore) Find(_ context.Context, query catalog.BookQuery, page catalog.PageRequest) ([]catalog.Book, int64, error) {
	s.db.mu.RLock()
	matches := make([]catalog.Book, 0)
	for _, book := range s.db.books {
		if query.Matches(book) {
			matches = append(matches, book)
		}
	}
	s.db.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })

	total := int64(len(matches))
	from := page.Offset()
	if from >= len(matches) {
		return []catalog.Book{}, total, nil
	}
	to := from + page.Size
	if to > len(matches) {
		to = len(matches)
	}
	return matches[from:to], total, nil
}

// bookByISBN must be called with db.mu held.
func (db *Database) bookByISBN(isbn string) (catalog.Book, bool) {
	for _, book := range db.books {
		if book.ISBN == isbn {
			return book, true
		}
	}
	return catalog.Book{}, false
}

// LoanStore implements circulation.Store.
type LoanStore struct {
	db *Database
}

func (s *LoanStore) Insert(_ context.Context, loan circulation.Loan) (*circulation.Loan, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	book, ok := s.db.books[loan.Book.ID]
	if !ok {
		return nil, apperr.NotFound(catalog.MsgBookNotFound)
	}
	if !loan.Returned {
		for _, existing := range s.db.loans {
			if existing.Book.ID == book.ID && !existing.Returned {
				return nil, apperr.Conflict(circulation.MsgBookAlreadyLoaned)
			}
		}
	}

	s.db.nextLoanID++
	loan.ID = s.db.nextLoanID
	loan.Book = book
	s.db.loans[loan.ID] = loan
	return &loan, nil
}

func (s *LoanStore) FindByBookAndReturned(_ context.Context, bookID int64, returned bool) (*circulation.Loan, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var found *circulation.Loan
	for _, loan := range s.db.loans {
		if loan.Book.ID != bookID || loan.Returned != returned {
			continue
		}
		if found == nil || loan.ID < found.ID {
			l := loan
			found = &l
		}
	}
	if found != nil {
		found.Book = s.db.books[bookID]
	}
	return found, nil
}
