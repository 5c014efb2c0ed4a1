package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookrate/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return NewGormStoreWithDB(db)
}

// NewGormStoreWithDB wraps an already opened gorm DB and runs auto-migrations.
// Tests use this with an in-memory sqlite database.
func NewGormStoreWithDB(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&UserModel{}, &BookModel{}, &ReviewModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser inserts a user. Unique-index violations on username or email
// surface as ErrDuplicateUser.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateUser
		}
		return err
	}
	return nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	return s.getUser("email = ?", email)
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	return s.getUser("username = ?", username)
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	return s.getUser("id = ?", id)
}

func (s *GormStore) getUser(cond string, arg any) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, cond, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateBook inserts a new catalog entry.
func (s *GormStore) CreateBook(b domain.Book) error {
	model := bookToModel(b)
	return s.db.Create(&model).Error
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// FindBookByTitleAuthor matches title+author case-insensitively. Backs the
// duplicate-book business rule checked at creation only.
func (s *GormStore) FindBookByTitleAuthor(title, author string) (domain.Book, bool, error) {
	var model BookModel
	err := s.db.
		Where("LOWER(title) = LOWER(?) AND LOWER(author) = LOWER(?)", title, author).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns a newest-first page with the unpaged total.
func (s *GormStore) ListBooks(filter BookFilter, page, limit int) ([]domain.Book, int64, error) {
	query := s.db.Model(&BookModel{})
	if filter.Author != "" {
		query = query.Where(`LOWER(author) LIKE LOWER(?) ESCAPE '\'`, likePattern(filter.Author))
	}
	if filter.Genre != "" {
		query = query.Where(`LOWER(genre) LIKE LOWER(?) ESCAPE '\'`, likePattern(filter.Genre))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []BookModel
	if err := query.Order("created_at DESC").
		Offset(pageOffset(page, limit)).Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	return booksFromModels(models), total, nil
}

// SearchBooks matches a substring against title and/or author. Results order
// by rating first so the best-reviewed matches lead. The count and page
// queries are independent reads and run concurrently.
func (s *GormStore) SearchBooks(query string, searchType domain.SearchType, page, limit int) ([]domain.Book, int64, error) {
	match := func(db *gorm.DB) *gorm.DB {
		pattern := likePattern(query)
		switch searchType {
		case domain.SearchTitle:
			return db.Where(`LOWER(title) LIKE LOWER(?) ESCAPE '\'`, pattern)
		case domain.SearchAuthor:
			return db.Where(`LOWER(author) LIKE LOWER(?) ESCAPE '\'`, pattern)
		default:
			return db.Where(`LOWER(title) LIKE LOWER(?) ESCAPE '\' OR LOWER(author) LIKE LOWER(?) ESCAPE '\'`, pattern, pattern)
		}
	}

	var (
		total  int64
		models []BookModel
	)
	var g errgroup.Group
	g.Go(func() error {
		return match(s.db.Model(&BookModel{})).Count(&total).Error
	})
	g.Go(func() error {
		return match(s.db.Model(&BookModel{})).
			Order("average_rating DESC, created_at DESC").
			Offset(pageOffset(page, limit)).Limit(limit).
			Find(&models).Error
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return booksFromModels(models), total, nil
}

// UpdateBook persists caller-editable book fields.
func (s *GormStore) UpdateBook(b domain.Book) error {
	res := s.db.Model(&BookModel{}).Where("id = ?", b.ID).Updates(map[string]any{
		"title":            b.Title,
		"author":           b.Author,
		"genre":            b.Genre,
		"description":      b.Description,
		"publication_date": b.PublicationDate,
		"isbn":             b.ISBN,
		"updated_at":       time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// SetBookCover records the object-storage key of the uploaded cover image.
func (s *GormStore) SetBookCover(id, coverKey string) error {
	res := s.db.Model(&BookModel{}).Where("id = ?", id).Updates(map[string]any{
		"cover_key":  coverKey,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

// DeleteBook removes the book and cascades to its reviews in one transaction.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ReviewModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&BookModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrBookNotFound
		}
		return nil
	})
}

// CreateReview inserts a review and recomputes the parent book's aggregates
// in the same transaction. A lost race on the (book,user) unique index
// surfaces as ErrDuplicateReview, same as the advisory pre-check.
func (s *GormStore) CreateReview(r domain.Review) error {
	model, err := reviewToModel(r)
	if err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateReview
			}
			return err
		}
		return recalcBookAggregates(tx, r.BookID)
	})
}

// GetReview returns one review by ID.
func (s *GormStore) GetReview(id string) (domain.Review, bool, error) {
	var model ReviewModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return reviewFromModel(model), true, nil
}

// GetReviewByBookAndUser backs the advisory duplicate-review pre-check.
func (s *GormStore) GetReviewByBookAndUser(bookID, userID string) (domain.Review, bool, error) {
	var model ReviewModel
	err := s.db.Where("book_id = ? AND user_id = ?", bookID, userID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return reviewFromModel(model), true, nil
}

// ListReviewsByBook returns a newest-first page of a book's reviews.
func (s *GormStore) ListReviewsByBook(bookID string, page, limit int) ([]domain.Review, int64, error) {
	return s.listReviews("book_id = ?", bookID, page, limit)
}

// ListReviewsByUser returns a newest-first page of a user's reviews.
func (s *GormStore) ListReviewsByUser(userID string, page, limit int) ([]domain.Review, int64, error) {
	return s.listReviews("user_id = ?", userID, page, limit)
}

func (s *GormStore) listReviews(cond string, arg any, page, limit int) ([]domain.Review, int64, error) {
	var total int64
	if err := s.db.Model(&ReviewModel{}).Where(cond, arg).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []ReviewModel
	if err := s.db.Where(cond, arg).
		Order("created_at DESC").
		Offset(pageOffset(page, limit)).Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	reviews := make([]domain.Review, 0, len(models))
	for _, m := range models {
		reviews = append(reviews, reviewFromModel(m))
	}
	return reviews, total, nil
}

// UpdateReview persists rating/text changes and recomputes aggregates.
func (s *GormStore) UpdateReview(r domain.Review) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ReviewModel{}).Where("id = ?", r.ID).Updates(map[string]any{
			"rating":      r.Rating,
			"review_text": r.ReviewText,
			"updated_at":  time.Now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrReviewNotFound
		}
		return recalcBookAggregates(tx, r.BookID)
	})
}

// DeleteReview removes a review and recomputes aggregates.
func (s *GormStore) DeleteReview(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model ReviewModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return err
		}
		if err := tx.Delete(&ReviewModel{}, "id = ?", id).Error; err != nil {
			return err
		}
		return recalcBookAggregates(tx, model.BookID)
	})
}

// ToggleLike adds the user to the review's like set, or removes them when
// already present. Likes never affect rating aggregates.
func (s *GormStore) ToggleLike(reviewID, userID string) (int, bool, error) {
	var (
		likeCount int
		liked     bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Lock the row so concurrent toggles by different users cannot
		// lose an update. sqlite has no FOR UPDATE; its single-writer
		// model already serializes the read-modify-write.
		read := tx
		if tx.Dialector.Name() == "postgres" {
			read = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var model ReviewModel
		if err := read.First(&model, "id = ?", reviewID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReviewNotFound
			}
			return err
		}
		likes := likesFromJSON(model.Likes)
		next := make([]string, 0, len(likes)+1)
		for _, id := range likes {
			if id == userID {
				continue
			}
			next = append(next, id)
		}
		if len(next) == len(likes) {
			next = append(next, userID)
			liked = true
		}
		raw, err := json.Marshal(next)
		if err != nil {
			return err
		}
		likeCount = len(next)
		return tx.Model(&ReviewModel{}).Where("id = ?", reviewID).
			Update("likes", datatypes.JSON(raw)).Error
	})
	if err != nil {
		return 0, false, err
	}
	return likeCount, liked, nil
}

// ReviewStats computes the live average, count, and per-rating histogram.
func (s *GormStore) ReviewStats(bookID string) (domain.ReviewStats, error) {
	avg, total, err := reviewAggregates(s.db, bookID)
	if err != nil {
		return domain.ReviewStats{}, err
	}

	var rows []struct {
		Rating int
		Cnt    int64
	}
	if err := s.db.Model(&ReviewModel{}).
		Select("rating, COUNT(*) AS cnt").
		Where("book_id = ?", bookID).
		Group("rating").
		Scan(&rows).Error; err != nil {
		return domain.ReviewStats{}, err
	}

	histogram := make(map[string]int64, 5)
	for rating := 1; rating <= 5; rating++ {
		histogram[fmt.Sprintf("%d", rating)] = 0
	}
	for _, row := range rows {
		histogram[fmt.Sprintf("%d", row.Rating)] = row.Cnt
	}
	return domain.ReviewStats{
		BookID:        bookID,
		AverageRating: avg,
		TotalReviews:  total,
		Histogram:     histogram,
	}, nil
}

// recalcBookAggregates recomputes cached rating fields from the full review
// set. An empty set resets to (0, 0). Rounding to one decimal happens here,
// at write time, so readers never re-round.
func recalcBookAggregates(tx *gorm.DB, bookID string) error {
	avg, total, err := reviewAggregates(tx, bookID)
	if err != nil {
		return err
	}
	return tx.Model(&BookModel{}).Where("id = ?", bookID).Updates(map[string]any{
		"average_rating": avg,
		"total_reviews":  total,
	}).Error
}

func reviewAggregates(tx *gorm.DB, bookID string) (float64, int64, error) {
	var agg struct {
		Avg sql.NullFloat64
		Cnt int64
	}
	if err := tx.Model(&ReviewModel{}).
		Select("AVG(rating) AS avg, COUNT(*) AS cnt").
		Where("book_id = ?", bookID).
		Scan(&agg).Error; err != nil {
		return 0, 0, err
	}
	avg := 0.0
	if agg.Avg.Valid {
		avg = math.Round(agg.Avg.Float64*10) / 10
	}
	return avg, agg.Cnt, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps user text in a substring LIKE pattern, escaping the
// LIKE metacharacters so the text matches literally.
func likePattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}

func pageOffset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		Genre:           b.Genre,
		Description:     b.Description,
		PublicationDate: b.PublicationDate,
		ISBN:            b.ISBN,
		CreatedBy:       b.CreatedBy,
		AverageRating:   b.AverageRating,
		TotalReviews:    b.TotalReviews,
		CoverKey:        b.CoverKey,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:              m.ID,
		Title:           m.Title,
		Author:          m.Author,
		Genre:           m.Genre,
		Description:     m.Description,
		PublicationDate: m.PublicationDate,
		ISBN:            m.ISBN,
		CreatedBy:       m.CreatedBy,
		AverageRating:   m.AverageRating,
		TotalReviews:    m.TotalReviews,
		CoverKey:        m.CoverKey,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func booksFromModels(models []BookModel) []domain.Book {
	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return books
}

func reviewToModel(r domain.Review) (ReviewModel, error) {
	likes := r.Likes
	if likes == nil {
		likes = []string{}
	}
	raw, err := json.Marshal(likes)
	if err != nil {
		return ReviewModel{}, err
	}
	return ReviewModel{
		ID:         r.ID,
		BookID:     r.BookID,
		UserID:     r.UserID,
		Rating:     r.Rating,
		ReviewText: r.ReviewText,
		Likes:      raw,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

func reviewFromModel(m ReviewModel) domain.Review {
	likes := likesFromJSON(m.Likes)
	return domain.Review{
		ID:         m.ID,
		BookID:     m.BookID,
		UserID:     m.UserID,
		Rating:     m.Rating,
		ReviewText: m.ReviewText,
		Likes:      likes,
		LikeCount:  len(likes),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func likesFromJSON(raw []byte) []string {
	likes := []string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &likes)
	}
	return likes
}
