// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// service implements the Service interface.
type service struct {
	db *sql.DB
}

// NewService creates a new catalog service instance.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

const bookColumns = `id, isbn, title, author, COALESCE(publisher, ''), COALESCE(published_year, 0),
	copies_total, copies_available, created_at, updated_at`

// AddBook creates a new book with all copies available.
func (s *service) AddBook(ctx context.Context, book Book) (*Book, error) {
	book.ISBN = strings.TrimSpace(book.ISBN)
	book.Title = strings.TrimSpace(book.Title)
	book.Author = strings.TrimSpace(book.Author)
	if book.ISBN == "" || book.Title == "" || book.Author == "" {
		return nil, fmt.Errorf("isbn, title and author are required")
	}
	if book.CopiesTotal < 0 {
		return nil, fmt.Errorf("total copies must not be negative")
	}

	book.ID = uuid.New()
	book.CopiesAvailable = book.CopiesTotal

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO books (id, isbn, title, author, publisher, published_year, copies_total, copies_available)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, 0), $7, $8)
		RETURNING created_at, updated_at
	`, book.ID, book.ISBN, book.Title, book.Author, book.Publisher, book.PublishedYear,
		book.CopiesTotal, book.CopiesAvailable).
		Scan(&book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, ErrDuplicateISBN
		}
		return nil, fmt.Errorf("insert book: %w", err)
	}

	return &book, nil
}

// GetBook retrieves a book by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	return scanBook(row)
}

// FindByISBN retrieves a book by its ISBN.
func (s *service) FindByISBN(ctx context.Context, isbn string) (*Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE isbn = $1`, strings.TrimSpace(isbn))
	return scanBook(row)
}

// ListBooks returns the full catalog ordered by title.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// Search finds books whose title or author matches the keyword.
func (s *service) Search(ctx context.Context, keyword string) ([]*Book, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(keyword)) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+bookColumns+`
		FROM books
		WHERE lower(title) LIKE $1 OR lower(author) LIKE $1
		ORDER BY title
		LIMIT 50
	`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer rows.Close()
	return collectBooks(rows)
}

// SetCopyCounts is the administrative catalog edit. The available count is
// clamped into [0, total] so an edit can never violate the ledger bounds.
func (s *service) SetCopyCounts(ctx context.Context, id uuid.UUID, total, available int) (*Book, error) {
	if total < 0 {
		return nil, fmt.Errorf("total copies must not be negative")
	}
	if available < 0 {
		available = 0
	}
	if available > total {
		available = total
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE books
		SET copies_total = $2, copies_available = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+bookColumns+`
	`, id, total, available)
	return scanBook(row)
}

// RemoveBook deletes a book from the catalog.
func (s *service) RemoveBook(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove book: %w", err)
	}
	if affected == 0 {
		return ErrBookNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*Book, error) {
	book := &Book{}
	err := row.Scan(
		&book.ID,
		&book.ISBN,
		&book.Title,
		&book.Author,
		&book.Publisher,
		&book.PublishedYear,
		&book.CopiesTotal,
		&book.CopiesAvailable,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan book: %w", err)
	}
	return book, nil
}

func collectBooks(rows *sql.Rows) ([]*Book, error) {
	var books []*Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}
