package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type BookModel struct {
	ID              string `gorm:"primaryKey"`
	Title           string `gorm:"not null;index"`
	Author          string `gorm:"not null;index"`
	Genre           string `gorm:"index"`
	Description     string `gorm:"type:text"`
	PublicationDate time.Time
	ISBN            string
	CreatedBy       string  `gorm:"not null;index"`
	AverageRating   float64 `gorm:"not null;default:0"`
	TotalReviews    int64   `gorm:"not null;default:0"`
	CoverKey        string
	CreatedAt       time.Time `gorm:"not null;index"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// ReviewModel enforces the one-review-per-(book,user) invariant with a
// composite unique index; the application pre-check is advisory only.
type ReviewModel struct {
	ID         string `gorm:"primaryKey"`
	BookID     string `gorm:"not null;index;uniqueIndex:idx_reviews_book_user"`
	UserID     string `gorm:"not null;index;uniqueIndex:idx_reviews_book_user"`
	Rating     int    `gorm:"not null"`
	ReviewText string `gorm:"type:text;not null"`
	Likes      datatypes.JSON
	CreatedAt  time.Time `gorm:"not null;index"`
	UpdatedAt  time.Time `gorm:"not null"`
}
