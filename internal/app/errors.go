package app

import "errors"

// Operation errors. The HTTP layer maps these to statuses; anything
// else coming out of the app is treated as an internal failure.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrEmailTaken         = errors.New("email is already registered")

	ErrBookNotFound    = errors.New("book not found")
	ErrReviewNotFound  = errors.New("review not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateBook   = errors.New("a book with this title and author already exists")
	ErrDuplicateReview = errors.New("you have already reviewed this book")

	ErrForbidden = errors.New("you do not own this resource")

	ErrSearchQueryRequired = errors.New("search query is required")
	ErrInvalidSearchType   = errors.New("search type must be title, author, or both")

	ErrCoversDisabled = errors.New("cover storage is not configured")
	ErrNoCover        = errors.New("book has no cover image")
)
