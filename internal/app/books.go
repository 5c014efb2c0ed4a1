package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bookrate/pkg/domain"
	"bookrate/pkg/store"
)

// coverURLExpiry bounds how long a presigned cover link stays valid.
const coverURLExpiry = 15 * time.Minute

// BookInput carries the writable book fields. Field-level validation
// happens at the HTTP layer; the app enforces business rules only.
type BookInput struct {
	Title           string
	Author          string
	Genre           string
	Description     string
	PublicationDate time.Time
	ISBN            string
}

// CreateBook adds a catalog entry owned by the actor. A case-insensitive
// (title, author) match with an existing book is rejected as a duplicate.
func (a *App) CreateBook(actor domain.User, in BookInput) (domain.Book, error) {
	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)

	if _, ok, err := a.store.FindBookByTitleAuthor(title, author); err != nil {
		return domain.Book{}, fmt.Errorf("duplicate check: %w", err)
	} else if ok {
		return domain.Book{}, ErrDuplicateBook
	}

	book := domain.Book{
		ID:              uuid.NewString(),
		Title:           title,
		Author:          author,
		Genre:           strings.TrimSpace(in.Genre),
		Description:     in.Description,
		PublicationDate: in.PublicationDate,
		ISBN:            strings.TrimSpace(in.ISBN),
		CreatedBy:       actor.ID,
	}
	if err := a.store.CreateBook(book); err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	created, ok, err := a.store.GetBook(book.ID)
	if err != nil || !ok {
		return book, nil
	}
	return created, nil
}

// GetBook returns one book by id.
func (a *App) GetBook(id string) (domain.Book, error) {
	book, ok, err := a.store.GetBook(id)
	if err != nil {
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}
	return book, nil
}

// GetBookWithReviews returns a book together with one page of its reviews,
// newest first.
func (a *App) GetBookWithReviews(id string, page, limit int) (domain.Book, []domain.Review, domain.PageMeta, error) {
	book, err := a.GetBook(id)
	if err != nil {
		return domain.Book{}, nil, domain.PageMeta{}, err
	}
	page, limit = normalizePage(page, limit, DefaultReviewLimit)
	reviews, total, err := a.store.ListReviewsByBook(id, page, limit)
	if err != nil {
		return domain.Book{}, nil, domain.PageMeta{}, fmt.Errorf("list reviews: %w", err)
	}
	return book, reviews, domain.NewPageMeta(page, limit, total), nil
}

// ListBooks pages through the catalog, optionally filtered by author
// and/or genre substring.
func (a *App) ListBooks(filter store.BookFilter, page, limit int) ([]domain.Book, domain.PageMeta, error) {
	page, limit = normalizePage(page, limit, DefaultBookLimit)
	books, total, err := a.store.ListBooks(filter, page, limit)
	if err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("list books: %w", err)
	}
	return books, domain.NewPageMeta(page, limit, total), nil
}

// UpdateBook replaces the writable fields of a book the actor owns.
func (a *App) UpdateBook(actor domain.User, id string, in BookInput) (domain.Book, error) {
	book, err := a.GetBook(id)
	if err != nil {
		return domain.Book{}, err
	}
	if err := ownedBy(actor, book.CreatedBy); err != nil {
		return domain.Book{}, err
	}

	title := strings.TrimSpace(in.Title)
	author := strings.TrimSpace(in.Author)
	if !strings.EqualFold(title, book.Title) || !strings.EqualFold(author, book.Author) {
		if other, ok, err := a.store.FindBookByTitleAuthor(title, author); err != nil {
			return domain.Book{}, fmt.Errorf("duplicate check: %w", err)
		} else if ok && other.ID != id {
			return domain.Book{}, ErrDuplicateBook
		}
	}

	book.Title = title
	book.Author = author
	book.Genre = strings.TrimSpace(in.Genre)
	book.Description = in.Description
	book.PublicationDate = in.PublicationDate
	book.ISBN = strings.TrimSpace(in.ISBN)
	if err := a.store.UpdateBook(book); err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return domain.Book{}, ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	updated, ok, err := a.store.GetBook(id)
	if err != nil || !ok {
		return book, nil
	}
	return updated, nil
}

// DeleteBook removes a book the actor owns along with all its reviews.
// The stored cover image, if any, is deleted best-effort.
func (a *App) DeleteBook(ctx context.Context, actor domain.User, id string) error {
	book, err := a.GetBook(id)
	if err != nil {
		return err
	}
	if err := ownedBy(actor, book.CreatedBy); err != nil {
		return err
	}
	if err := a.store.DeleteBook(id); err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return ErrBookNotFound
		}
		return fmt.Errorf("delete book: %w", err)
	}
	if a.covers != nil && book.CoverKey != "" {
		if err := a.covers.DeleteCover(ctx, book.CoverKey); err != nil {
			slog.Warn("orphaned cover object", "book_id", id, "key", book.CoverKey, "error", err)
		}
	}
	return nil
}

// UploadCover stores a cover image for a book the actor owns and records
// its object key.
func (a *App) UploadCover(ctx context.Context, actor domain.User, bookID string, r io.Reader, size int64, contentType string) error {
	if a.covers == nil {
		return ErrCoversDisabled
	}
	book, err := a.GetBook(bookID)
	if err != nil {
		return err
	}
	if err := ownedBy(actor, book.CreatedBy); err != nil {
		return err
	}
	key := fmt.Sprintf("covers/%s", bookID)
	if err := a.covers.PutCover(ctx, key, r, size, contentType); err != nil {
		return fmt.Errorf("store cover: %w", err)
	}
	if err := a.store.SetBookCover(bookID, key); err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return ErrBookNotFound
		}
		return fmt.Errorf("record cover key: %w", err)
	}
	return nil
}

// CoverURL returns a time-limited download URL for a book's cover.
func (a *App) CoverURL(ctx context.Context, bookID string) (string, error) {
	if a.covers == nil {
		return "", ErrCoversDisabled
	}
	book, err := a.GetBook(bookID)
	if err != nil {
		return "", err
	}
	if book.CoverKey == "" {
		return "", ErrNoCover
	}
	url, err := a.covers.CoverURL(ctx, book.CoverKey, coverURLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign cover: %w", err)
	}
	return url, nil
}
