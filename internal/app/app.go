// Package app implements the core operations of the review platform:
// account management, the book catalog, reviews with cached rating
// aggregates, and search. HTTP concerns live in internal/server.
package app

import (
	"bookrate/pkg/domain"
	"bookrate/pkg/storage"
	"bookrate/pkg/store"
)

// Pagination defaults shared by every listing operation. Pages are
// 1-indexed and limits are capped at maxLimit.
const (
	DefaultLimit       = 10
	DefaultBookLimit   = 12
	DefaultReviewLimit = 5
	maxLimit           = 100
)

// App wires the persistence and storage layers behind the operations.
// covers may be nil when no object store is configured.
type App struct {
	store    store.Store
	sessions store.SessionStore
	covers   storage.CoverStore
}

func New(st store.Store, sessions store.SessionStore, covers storage.CoverStore) *App {
	return &App{store: st, sessions: sessions, covers: covers}
}

// ownedBy is the single authorization predicate for mutations: the actor
// must be the entity's creator or author.
func ownedBy(actor domain.User, ownerID string) error {
	if actor.ID != ownerID {
		return ErrForbidden
	}
	return nil
}

// normalizePage clamps page/limit to the shared pagination convention.
func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
