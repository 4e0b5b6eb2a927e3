// internal/catalog/implementation_test.go
package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libracore/internal/storage/storagetest"
)

func TestAddBookAndLookup(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, Book{
		ISBN:          "978-0132350884",
		Title:         "Clean Code",
		Author:        "Robert C. Martin",
		Publisher:     "Prentice Hall",
		PublishedYear: 2008,
		CopiesTotal:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, book.CopiesAvailable)

	byISBN, err := svc.FindByISBN(ctx, "978-0132350884")
	require.NoError(t, err)
	assert.Equal(t, book.ID, byISBN.ID)
	assert.Equal(t, "Prentice Hall", byISBN.Publisher)

	byID, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clean Code", byID.Title)
}

func TestAddBookDuplicateISBN(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.AddBook(ctx, Book{ISBN: "978-1", Title: "First", Author: "A", CopiesTotal: 1})
	require.NoError(t, err)

	_, err = svc.AddBook(ctx, Book{ISBN: "978-1", Title: "Second", Author: "B", CopiesTotal: 1})
	assert.ErrorIs(t, err, ErrDuplicateISBN)
}

func TestGetBookNotFound(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db)

	_, err := svc.GetBook(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestSearch(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db)
	ctx := context.Background()

	_, err := svc.AddBook(ctx, Book{ISBN: "978-2", Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", CopiesTotal: 2})
	require.NoError(t, err)
	_, err = svc.AddBook(ctx, Book{ISBN: "978-3", Title: "Refactoring", Author: "Martin Fowler", CopiesTotal: 1})
	require.NoError(t, err)

	hits, err := svc.Search(ctx, "martin")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = svc.Search(ctx, "refactor")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Refactoring", hits[0].Title)
}

func TestSetCopyCountsClampsAvailable(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, Book{ISBN: "978-4", Title: "Deep Learning", Author: "Ian Goodfellow", CopiesTotal: 5})
	require.NoError(t, err)

	updated, err := svc.SetCopyCounts(ctx, book.ID, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CopiesTotal)
	assert.Equal(t, 2, updated.CopiesAvailable)
}

func TestReserveCopyConditionalDecrement(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, Book{ISBN: "978-5", Title: "Domain-Driven Design", Author: "Eric Evans", CopiesTotal: 1})
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, ReserveCopy(ctx, tx, book.ID))
	require.NoError(t, tx.Commit())

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, ReserveCopy(ctx, tx, book.ID), ErrOutOfStock)
	tx.Rollback()

	tx, err = db.BeginTx(ctx, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, ReserveCopy(ctx, tx, uuid.New()), ErrBookNotFound)
	tx.Rollback()
}

func TestReleaseCopyClampsAtTotal(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, Book{ISBN: "978-6", Title: "Building Microservices", Author: "Sam Newman", CopiesTotal: 2})
	require.NoError(t, err)

	// Releasing with every copy already on the shelf must not exceed total.
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, ReleaseCopy(ctx, tx, book.ID))
	require.NoError(t, tx.Commit())

	after, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.CopiesAvailable)
}

func TestReserveCopyNoOversellUnderContention(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db)
	ctx := context.Background()

	const copies = 3
	const workers = 20

	book, err := svc.AddBook(ctx, Book{ISBN: "978-7", Title: "Head First SQL", Author: "Lynn Beighley", CopiesTotal: copies})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				results <- err
				return
			}
			if err := ReserveCopy(ctx, tx, book.ID); err != nil {
				tx.Rollback()
				results <- err
				return
			}
			results <- tx.Commit()
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrOutOfStock)
		}
	}
	assert.Equal(t, copies, succeeded)

	after, err := svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.CopiesAvailable)
}
