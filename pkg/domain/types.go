package domain

import (
	"math"
	"time"
)

// SearchType selects which book fields a catalog search matches against.
type SearchType string

const (
	SearchTitle  SearchType = "title"
	SearchAuthor SearchType = "author"
	SearchBoth   SearchType = "both"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Book carries cached rating aggregates. AverageRating and TotalReviews are
// derived from the book's current review set and recomputed on every review
// mutation, never patched incrementally.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Genre           string    `json:"genre"`
	Description     string    `json:"description"`
	PublicationDate time.Time `json:"publicationDate"`
	ISBN            string    `json:"isbn,omitempty"`
	CreatedBy       string    `json:"createdBy"`
	AverageRating   float64   `json:"averageRating"`
	TotalReviews    int64     `json:"totalReviews"`
	CoverKey        string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Review struct {
	ID         string    `json:"id"`
	BookID     string    `json:"bookId"`
	UserID     string    `json:"userId"`
	Rating     int       `json:"rating"`
	ReviewText string    `json:"reviewText"`
	Likes      []string  `json:"likes"`
	LikeCount  int       `json:"likeCount"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ReviewStats summarizes a book's review set. Histogram always carries the
// "1".."5" buckets, zero-valued when empty.
type ReviewStats struct {
	BookID        string           `json:"bookId"`
	AverageRating float64          `json:"averageRating"`
	TotalReviews  int64            `json:"totalReviews"`
	Histogram     map[string]int64 `json:"histogram"`
}

// PageMeta describes an offset-based slice of an ordered result set.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPageMeta derives page metadata from a total count.
func NewPageMeta(page, limit int, total int64) PageMeta {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return PageMeta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && total > 0,
	}
}

// ParseSearchType normalizes a search type parameter, defaulting to both.
func ParseSearchType(raw string) (SearchType, bool) {
	switch SearchType(raw) {
	case SearchTitle, SearchAuthor, SearchBoth:
		return SearchType(raw), true
	case "":
		return SearchBoth, true
	default:
		return "", false
	}
}
