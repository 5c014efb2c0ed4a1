package store

import (
	"errors"

	"bookrate/pkg/domain"
)

// Sentinel errors surfaced by store implementations. The duplicate errors
// cover both the advisory pre-checks and races settled by unique indexes.
var (
	ErrBookNotFound    = errors.New("book not found")
	ErrReviewNotFound  = errors.New("review not found")
	ErrDuplicateUser   = errors.New("duplicate user")
	ErrDuplicateReview = errors.New("duplicate review")
)

// BookFilter narrows book listings with case-insensitive substring matches.
type BookFilter struct {
	Author string
	Genre  string
}

// Store defines persistence operations for users, books, and reviews.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// books
	CreateBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	FindBookByTitleAuthor(title, author string) (domain.Book, bool, error)
	ListBooks(filter BookFilter, page, limit int) ([]domain.Book, int64, error)
	SearchBooks(query string, searchType domain.SearchType, page, limit int) ([]domain.Book, int64, error)
	UpdateBook(domain.Book) error
	SetBookCover(id, coverKey string) error
	// DeleteBook removes the book and all of its reviews in one transaction.
	DeleteBook(id string) error

	// reviews; every mutation recomputes the parent book's cached
	// averageRating/totalReviews inside the same transaction.
	CreateReview(domain.Review) error
	GetReview(id string) (domain.Review, bool, error)
	GetReviewByBookAndUser(bookID, userID string) (domain.Review, bool, error)
	ListReviewsByBook(bookID string, page, limit int) ([]domain.Review, int64, error)
	ListReviewsByUser(userID string, page, limit int) ([]domain.Review, int64, error)
	UpdateReview(domain.Review) error
	DeleteReview(id string) error
	ToggleLike(reviewID, userID string) (likeCount int, liked bool, err error)
	ReviewStats(bookID string) (domain.ReviewStats, error)
}

// SessionStore issues and resolves bearer session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
