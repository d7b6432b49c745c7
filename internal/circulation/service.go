// internal/circulation/service.go
package circulation

import (
	"context"

	"libraryloans/internal/catalog"
)

// Service defines the interface for the circulation service.
type Service interface {
	Save(ctx context.Context, loan *Loan) (*Loan, error)
	IsBookAlreadyLoaned(ctx context.Context, book *catalog.Book) (bool, error)
	Lend(ctx context.Context, isbn, customer string) (*Loan, error)
}

// Store persists loans. Insert must reject a second open loan for the same
// book atomically, failing with a Conflict error.
type Store interface {
	Insert(ctx context.Context, loan Loan) (*Loan, error)
	FindByBookAndReturned(ctx context.Context, bookID int64, returned bool) (*Loan, error)
}

// BookFinder resolves the book a loan is made against.
type BookFinder interface {
	FindByISBNRequired(ctx context.Context, isbn string) (*catalog.Book, error)
}
