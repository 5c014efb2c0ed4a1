package app

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bookrate/pkg/domain"
	"bookrate/pkg/store"
)

// CreateReview records the actor's review of a book. A second review of
// the same book by the same user is a conflict; the unique index settles
// any race the pre-check misses. The book's cached aggregates are
// recomputed in the same transaction as the insert.
func (a *App) CreateReview(actor domain.User, bookID string, rating int, text string) (domain.Review, error) {
	if _, err := a.GetBook(bookID); err != nil {
		return domain.Review{}, err
	}
	if _, ok, err := a.store.GetReviewByBookAndUser(bookID, actor.ID); err != nil {
		return domain.Review{}, fmt.Errorf("duplicate check: %w", err)
	} else if ok {
		return domain.Review{}, ErrDuplicateReview
	}

	review := domain.Review{
		ID:         uuid.NewString(),
		BookID:     bookID,
		UserID:     actor.ID,
		Rating:     rating,
		ReviewText: text,
		Likes:      []string{},
	}
	if err := a.store.CreateReview(review); err != nil {
		if errors.Is(err, store.ErrDuplicateReview) {
			return domain.Review{}, ErrDuplicateReview
		}
		return domain.Review{}, fmt.Errorf("create review: %w", err)
	}
	created, ok, err := a.store.GetReview(review.ID)
	if err != nil || !ok {
		return review, nil
	}
	return created, nil
}

// GetReview returns one review by id.
func (a *App) GetReview(id string) (domain.Review, error) {
	review, ok, err := a.store.GetReview(id)
	if err != nil {
		return domain.Review{}, fmt.Errorf("get review: %w", err)
	}
	if !ok {
		return domain.Review{}, ErrReviewNotFound
	}
	return review, nil
}

// UpdateReview changes the rating and text of a review the actor wrote.
// Aggregates are recomputed in the same transaction.
func (a *App) UpdateReview(actor domain.User, id string, rating int, text string) (domain.Review, error) {
	review, err := a.GetReview(id)
	if err != nil {
		return domain.Review{}, err
	}
	if err := ownedBy(actor, review.UserID); err != nil {
		return domain.Review{}, err
	}
	review.Rating = rating
	review.ReviewText = text
	if err := a.store.UpdateReview(review); err != nil {
		if errors.Is(err, store.ErrReviewNotFound) {
			return domain.Review{}, ErrReviewNotFound
		}
		return domain.Review{}, fmt.Errorf("update review: %w", err)
	}
	updated, ok, err := a.store.GetReview(id)
	if err != nil || !ok {
		return review, nil
	}
	return updated, nil
}

// DeleteReview removes a review the actor wrote. An empty remaining
// review set resets the book's aggregates to zero.
func (a *App) DeleteReview(actor domain.User, id string) error {
	review, err := a.GetReview(id)
	if err != nil {
		return err
	}
	if err := ownedBy(actor, review.UserID); err != nil {
		return err
	}
	if err := a.store.DeleteReview(id); err != nil {
		if errors.Is(err, store.ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		return fmt.Errorf("delete review: %w", err)
	}
	return nil
}

// ListBookReviews pages through a book's reviews, newest first.
func (a *App) ListBookReviews(bookID string, page, limit int) ([]domain.Review, domain.PageMeta, error) {
	if _, err := a.GetBook(bookID); err != nil {
		return nil, domain.PageMeta{}, err
	}
	page, limit = normalizePage(page, limit, DefaultReviewLimit)
	reviews, total, err := a.store.ListReviewsByBook(bookID, page, limit)
	if err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, domain.NewPageMeta(page, limit, total), nil
}

// ListUserReviews pages through one user's reviews, newest first.
func (a *App) ListUserReviews(userID string, page, limit int) ([]domain.Review, domain.PageMeta, error) {
	if _, ok, err := a.store.GetUserByID(userID); err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("lookup user: %w", err)
	} else if !ok {
		return nil, domain.PageMeta{}, ErrUserNotFound
	}
	page, limit = normalizePage(page, limit, DefaultLimit)
	reviews, total, err := a.store.ListReviewsByUser(userID, page, limit)
	if err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, domain.NewPageMeta(page, limit, total), nil
}

// ToggleLike flips the actor's like on a review and returns the new
// count and whether the actor now likes it. Likes never touch the
// book's rating aggregates.
func (a *App) ToggleLike(actor domain.User, reviewID string) (int, bool, error) {
	count, liked, err := a.store.ToggleLike(reviewID, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrReviewNotFound) {
			return 0, false, ErrReviewNotFound
		}
		return 0, false, fmt.Errorf("toggle like: %w", err)
	}
	return count, liked, nil
}

// ReviewStats returns a book's average rating, review count, and the
// 1..5 rating histogram.
func (a *App) ReviewStats(bookID string) (domain.ReviewStats, error) {
	if _, err := a.GetBook(bookID); err != nil {
		return domain.ReviewStats{}, err
	}
	stats, err := a.store.ReviewStats(bookID)
	if err != nil {
		return domain.ReviewStats{}, fmt.Errorf("review stats: %w", err)
	}
	return stats, nil
}
