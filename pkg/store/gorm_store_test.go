package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"bookrate/pkg/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewGormStoreWithDB(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func seedUser(t *testing.T, s *GormStore, username string) domain.User {
	t.Helper()
	now := time.Now().UTC()
	u := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateUser(u); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func seedBook(t *testing.T, s *GormStore, creator domain.User, title, author string) domain.Book {
	t.Helper()
	now := time.Now().UTC()
	b := domain.Book{
		ID:              uuid.NewString(),
		Title:           title,
		Author:          author,
		Genre:           "Fiction",
		Description:     "seeded for tests",
		PublicationDate: now.AddDate(-10, 0, 0),
		CreatedBy:       creator.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.CreateBook(b); err != nil {
		t.Fatalf("seed book %s: %v", title, err)
	}
	return b
}

func seedReview(t *testing.T, s *GormStore, book domain.Book, user domain.User, rating int) domain.Review {
	t.Helper()
	now := time.Now().UTC()
	r := domain.Review{
		ID:         uuid.NewString(),
		BookID:     book.ID,
		UserID:     user.ID,
		Rating:     rating,
		ReviewText: "long enough review text",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.CreateReview(r); err != nil {
		t.Fatalf("seed review: %v", err)
	}
	return r
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestStore(t)
	seedUser(t, s, "alice")

	now := time.Now().UTC()
	dup := domain.User{
		ID:           uuid.NewString(),
		Username:     "alice",
		Email:        "alice2@example.com",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateUser(dup); !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got: %v", err)
	}
}

func TestReviewAggregationScenario(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	userA := seedUser(t, s, "usera")
	userB := seedUser(t, s, "userb")
	book := seedBook(t, s, creator, "Dune", "Herbert")

	reviewA := seedReview(t, s, book, userA, 5)
	got, _, err := s.GetBook(book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.AverageRating != 5.0 || got.TotalReviews != 1 {
		t.Fatalf("after first review: avg=%v total=%v", got.AverageRating, got.TotalReviews)
	}

	seedReview(t, s, book, userB, 1)
	got, _, err = s.GetBook(book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.AverageRating != 3.0 || got.TotalReviews != 2 {
		t.Fatalf("after second review: avg=%v total=%v", got.AverageRating, got.TotalReviews)
	}

	if err := s.DeleteReview(reviewA.ID); err != nil {
		t.Fatalf("delete review: %v", err)
	}
	got, _, err = s.GetBook(book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.AverageRating != 1.0 || got.TotalReviews != 1 {
		t.Fatalf("after delete: avg=%v total=%v", got.AverageRating, got.TotalReviews)
	}
}

func TestReviewAggregationRounding(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	book := seedBook(t, s, creator, "Hyperion", "Simmons")
	for i, rating := range []int{5, 4, 4} {
		u := seedUser(t, s, fmt.Sprintf("reader%d", i))
		seedReview(t, s, book, u, rating)
	}
	got, _, err := s.GetBook(book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	// mean(5,4,4) = 4.333... -> 4.3
	if got.AverageRating != 4.3 {
		t.Fatalf("expected 4.3, got %v", got.AverageRating)
	}
}

func TestReviewAggregationResetsWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	reader := seedUser(t, s, "reader")
	book := seedBook(t, s, creator, "Solaris", "Lem")
	review := seedReview(t, s, book, reader, 4)

	if err := s.DeleteReview(review.ID); err != nil {
		t.Fatalf("delete review: %v", err)
	}
	got, _, err := s.GetBook(book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.AverageRating != 0 || got.TotalReviews != 0 {
		t.Fatalf("expected reset aggregates, got avg=%v total=%v", got.AverageRating, got.TotalReviews)
	}
}

func TestUpdateReviewRecomputesAggregates(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	reader := seedUser(t, s, "reader")
	book := seedBook(t, s, creator, "Solaris", "Lem")
	review := seedReview(t, s, book, reader, 2)

	review.Rating = 5
	if err := s.UpdateReview(review); err != nil {
		t.Fatalf("update review: %v", err)
	}
	got, _, err := s.GetBook(book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.AverageRating != 5.0 {
		t.Fatalf("expected recomputed avg 5.0, got %v", got.AverageRating)
	}
}

func TestDuplicateReviewRejectedByUniqueIndex(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	reader := seedUser(t, s, "reader")
	book := seedBook(t, s, creator, "Dune", "Herbert")
	seedReview(t, s, book, reader, 5)

	now := time.Now().UTC()
	dup := domain.Review{
		ID:         uuid.NewString(),
		BookID:     book.ID,
		UserID:     reader.ID,
		Rating:     1,
		ReviewText: "second attempt by same user",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.CreateReview(dup); !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("expected ErrDuplicateReview, got: %v", err)
	}
	// The losing insert must not disturb the aggregates.
	got, _, err := s.GetBook(book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.TotalReviews != 1 || got.AverageRating != 5.0 {
		t.Fatalf("aggregates changed by rejected insert: avg=%v total=%v", got.AverageRating, got.TotalReviews)
	}
}

func TestDeleteBookCascadesReviews(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	reader := seedUser(t, s, "reader")
	book := seedBook(t, s, creator, "Dune", "Herbert")
	review := seedReview(t, s, book, reader, 5)

	if err := s.DeleteBook(book.ID); err != nil {
		t.Fatalf("delete book: %v", err)
	}
	if _, ok, _ := s.GetBook(book.ID); ok {
		t.Fatalf("book should be gone")
	}
	if _, ok, _ := s.GetReview(review.ID); ok {
		t.Fatalf("reviews should cascade with the book")
	}
}

func TestListBooksPagination(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	for i := 0; i < 25; i++ {
		seedBook(t, s, creator, fmt.Sprintf("Book %02d", i), "Author")
	}

	for _, tc := range []struct {
		page int
		want int
	}{
		{1, 10}, {2, 10}, {3, 5},
	} {
		page := tc.page
		books, total, err := s.ListBooks(BookFilter{}, page, 10)
		if err != nil {
			t.Fatalf("list page %d: %v", page, err)
		}
		if total != 25 {
			t.Fatalf("expected total 25, got %d", total)
		}
		if len(books) != tc.want {
			t.Fatalf("page %d: expected %d items, got %d", page, tc.want, len(books))
		}
		meta := domain.NewPageMeta(page, 10, total)
		if meta.HasNext != (page < 3) {
			t.Fatalf("page %d: hasNext=%v", page, meta.HasNext)
		}
		if meta.HasPrev != (page > 1) {
			t.Fatalf("page %d: hasPrev=%v", page, meta.HasPrev)
		}
		if meta.TotalPages != 3 {
			t.Fatalf("expected 3 total pages, got %d", meta.TotalPages)
		}
	}
}

func TestListBooksFilterCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	seedBook(t, s, creator, "Dune", "Frank Herbert")
	seedBook(t, s, creator, "Neuromancer", "William Gibson")

	books, total, err := s.ListBooks(BookFilter{Author: "herbert"}, 1, 10)
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if total != 1 || len(books) != 1 || books[0].Title != "Dune" {
		t.Fatalf("author filter mismatch: total=%d books=%v", total, books)
	}
}

func TestSearchBooksOrderingAndTypes(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	low := seedBook(t, s, creator, "Dune Messiah", "Frank Herbert")
	high := seedBook(t, s, creator, "Dune", "Frank Herbert")
	reader := seedUser(t, s, "reader")
	seedReview(t, s, high, reader, 5)
	seedReview(t, s, low, reader, 2)

	results, total, err := s.SearchBooks("dune", domain.SearchTitle, 1, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("expected 2 results, got total=%d len=%d", total, len(results))
	}
	if results[0].ID != high.ID {
		t.Fatalf("expected best-rated match first, got %q", results[0].Title)
	}

	results, _, err = s.SearchBooks("herbert", domain.SearchAuthor, 1, 10)
	if err != nil {
		t.Fatalf("search author: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("author search expected 2, got %d", len(results))
	}

	results, _, err = s.SearchBooks("messiah", domain.SearchBoth, 1, 10)
	if err != nil {
		t.Fatalf("search both: %v", err)
	}
	if len(results) != 1 || results[0].ID != low.ID {
		t.Fatalf("both search mismatch: %v", results)
	}
}

func TestFilterAndSearchMatchLikeMetacharactersLiterally(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	seedBook(t, s, creator, "100% Legit", "Sam Jones")
	seedBook(t, s, creator, "Plain Title", "Sam_Smith")
	seedBook(t, s, creator, "Another", "Bob")

	// A bare wildcard must match only the title containing a literal %.
	results, total, err := s.SearchBooks("%", domain.SearchTitle, 1, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 1 || len(results) != 1 || results[0].Title != "100% Legit" {
		t.Fatalf("wildcard should match literally: total=%d results=%v", total, results)
	}

	// Same for underscore in the author filter.
	books, total, err := s.ListBooks(BookFilter{Author: "_"}, 1, 10)
	if err != nil {
		t.Fatalf("list books: %v", err)
	}
	if total != 1 || len(books) != 1 || books[0].Author != "Sam_Smith" {
		t.Fatalf("underscore should match literally: total=%d books=%v", total, books)
	}
}

func TestFindBookByTitleAuthorCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	seedBook(t, s, creator, "Dune", "Frank Herbert")

	if _, ok, err := s.FindBookByTitleAuthor("DUNE", "frank herbert"); err != nil || !ok {
		t.Fatalf("expected case-insensitive match, ok=%v err=%v", ok, err)
	}
	if _, ok, _ := s.FindBookByTitleAuthor("Dune", "Other"); ok {
		t.Fatalf("different author should not match")
	}
}

func TestToggleLikeIsItsOwnInverse(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	reader := seedUser(t, s, "reader")
	liker := seedUser(t, s, "liker")
	book := seedBook(t, s, creator, "Dune", "Herbert")
	review := seedReview(t, s, book, reader, 5)

	count, liked, err := s.ToggleLike(review.ID, liker.ID)
	if err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	if !liked || count != 1 {
		t.Fatalf("expected liked with count 1, got liked=%v count=%d", liked, count)
	}
	count, liked, err = s.ToggleLike(review.ID, liker.ID)
	if err != nil {
		t.Fatalf("toggle unlike: %v", err)
	}
	if liked || count != 0 {
		t.Fatalf("expected unliked with count 0, got liked=%v count=%d", liked, count)
	}
}

func TestToggleLikeAccumulatesAcrossUsers(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	reader := seedUser(t, s, "reader")
	likerA := seedUser(t, s, "likera")
	likerB := seedUser(t, s, "likerb")
	book := seedBook(t, s, creator, "Dune", "Herbert")
	review := seedReview(t, s, book, reader, 5)

	if count, _, err := s.ToggleLike(review.ID, likerA.ID); err != nil || count != 1 {
		t.Fatalf("first liker: count=%d err=%v", count, err)
	}
	if count, _, err := s.ToggleLike(review.ID, likerB.ID); err != nil || count != 2 {
		t.Fatalf("second liker: count=%d err=%v", count, err)
	}
	// Removing one like must leave the other intact.
	count, liked, err := s.ToggleLike(review.ID, likerA.ID)
	if err != nil || liked || count != 1 {
		t.Fatalf("unlike: count=%d liked=%v err=%v", count, liked, err)
	}
	remaining, ok, err := s.GetReview(review.ID)
	if err != nil || !ok {
		t.Fatalf("get review: ok=%v err=%v", ok, err)
	}
	if len(remaining.Likes) != 1 || remaining.Likes[0] != likerB.ID {
		t.Fatalf("remaining likes = %v", remaining.Likes)
	}
}

func TestToggleLikeDoesNotTouchAggregates(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	reader := seedUser(t, s, "reader")
	book := seedBook(t, s, creator, "Dune", "Herbert")
	review := seedReview(t, s, book, reader, 4)

	if _, _, err := s.ToggleLike(review.ID, creator.ID); err != nil {
		t.Fatalf("toggle like: %v", err)
	}
	got, _, err := s.GetBook(book.ID)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.AverageRating != 4.0 || got.TotalReviews != 1 {
		t.Fatalf("likes must not affect aggregates: avg=%v total=%v", got.AverageRating, got.TotalReviews)
	}
}

func TestReviewStatsHistogram(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	book := seedBook(t, s, creator, "Dune", "Herbert")
	for i, rating := range []int{5, 5, 3} {
		u := seedUser(t, s, fmt.Sprintf("reader%d", i))
		seedReview(t, s, book, u, rating)
	}

	stats, err := s.ReviewStats(book.ID)
	if err != nil {
		t.Fatalf("review stats: %v", err)
	}
	if stats.TotalReviews != 3 {
		t.Fatalf("expected 3 reviews, got %d", stats.TotalReviews)
	}
	// mean(5,5,3) = 4.333... -> 4.3
	if stats.AverageRating != 4.3 {
		t.Fatalf("expected avg 4.3, got %v", stats.AverageRating)
	}
	want := map[string]int64{"1": 0, "2": 0, "3": 1, "4": 0, "5": 2}
	for bucket, count := range want {
		if stats.Histogram[bucket] != count {
			t.Fatalf("bucket %s: expected %d, got %d", bucket, count, stats.Histogram[bucket])
		}
	}
}

func TestReviewStatsEmptyBook(t *testing.T) {
	s := newTestStore(t)
	creator := seedUser(t, s, "creator")
	book := seedBook(t, s, creator, "Dune", "Herbert")

	stats, err := s.ReviewStats(book.ID)
	if err != nil {
		t.Fatalf("review stats: %v", err)
	}
	if stats.AverageRating != 0 || stats.TotalReviews != 0 {
		t.Fatalf("empty book should report zero aggregates")
	}
	if len(stats.Histogram) != 5 {
		t.Fatalf("histogram must carry all 5 buckets, got %d", len(stats.Histogram))
	}
}
