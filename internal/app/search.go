package app

import (
	"fmt"
	"strings"

	"bookrate/pkg/domain"
)

// SearchBooks matches the query against titles and/or authors,
// case-insensitive, ordered best-rated first. An empty query is an
// error; an empty search type defaults to both fields.
func (a *App) SearchBooks(query, rawType string, page, limit int) ([]domain.Book, domain.PageMeta, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.PageMeta{}, ErrSearchQueryRequired
	}
	searchType, ok := domain.ParseSearchType(rawType)
	if !ok {
		return nil, domain.PageMeta{}, ErrInvalidSearchType
	}
	page, limit = normalizePage(page, limit, DefaultLimit)
	books, total, err := a.store.SearchBooks(query, searchType, page, limit)
	if err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("search books: %w", err)
	}
	return books, domain.NewPageMeta(page, limit, total), nil
}
