// internal/catalog/service.go
package catalog

import (
	"context"

	"libraryloans/internal/journal"
)

// Service defines the interface for the catalog service.
type Service interface {
	Save(ctx context.Context, book *Book) (*Book, error)
	FindByID(ctx context.Context, id int64) (*Book, bool, error)
	FindByIDRequired(ctx context.Context, id int64) (*Book, error)
	FindByISBN(ctx context.Context, isbn string) (*Book, bool, error)
	FindByISBNRequired(ctx context.Context, isbn string) (*Book, error)
	Update(ctx context.Context, book *Book) (*Book, error)
	Delete(ctx context.Context, id int64) error
	Find(ctx context.Context, query BookQuery, page PageRequest) (Page[Book], error)
	History(ctx context.Context, id int64) ([]journal.Entry, error)
}

// Store persists books. Lookups return (nil, nil) when nothing matches.
type Store interface {
	Insert(ctx context.Context, book Book) (*Book, error)
	Update(ctx context.Context, book Book) (*Book, error)
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*Book, error)
	FindByISBN(ctx context.Context, isbn string) (*Book, error)
	Find(ctx context.Context, query BookQuery, page PageRequest) ([]Book, int64, error)
}
