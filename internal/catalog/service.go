// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, book Book) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	FindByISBN(ctx context.Context, isbn string) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	Search(ctx context.Context, keyword string) ([]*Book, error)
	SetCopyCounts(ctx context.Context, id uuid.UUID, total, available int) (*Book, error)
	RemoveBook(ctx context.Context, id uuid.UUID) error
}
