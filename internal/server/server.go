// Package server exposes the REST API: routing, auth and rate-limit
// middleware, request decoding, and the response envelope.
package server

import (
	"net/http"
	"strings"

	"bookrate/internal/app"
	"bookrate/internal/ratelimit"
	"bookrate/internal/util"
	"bookrate/pkg/domain"
)

// Options tunes per-deployment server behavior.
type Options struct {
	// TrustProxyHeaders enables X-Forwarded-For/X-Real-Ip for client IPs.
	TrustProxyHeaders bool
	// MaxCoverBytes caps cover uploads; zero means the 5 MiB default.
	MaxCoverBytes int64
	// SignupLimiter and LoginLimiter are optional per-IP limiters.
	SignupLimiter *ratelimit.FixedWindowLimiter
	LoginLimiter  *ratelimit.FixedWindowLimiter
}

const defaultMaxCoverBytes = 5 << 20

type Server struct {
	app  *app.App
	opts Options
}

func New(a *app.App, opts Options) *Server {
	if opts.MaxCoverBytes <= 0 {
		opts.MaxCoverBytes = defaultMaxCoverBytes
	}
	return &Server{app: a, opts: opts}
}

// Router builds the full handler chain.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /api/auth/signup", s.rateLimited(s.opts.SignupLimiter, s.handleSignup))
	mux.HandleFunc("POST /api/auth/login", s.rateLimited(s.opts.LoginLimiter, s.handleLogin))
	mux.HandleFunc("POST /api/auth/logout", s.withUser(s.handleLogout))
	mux.HandleFunc("GET /api/auth/profile", s.withUser(s.handleProfile))

	mux.HandleFunc("POST /api/books", s.withUser(s.handleCreateBook))
	mux.HandleFunc("GET /api/books", s.handleListBooks)
	mux.HandleFunc("GET /api/books/{id}", s.handleGetBook)
	mux.HandleFunc("PUT /api/books/{id}", s.withUser(s.handleUpdateBook))
	mux.HandleFunc("DELETE /api/books/{id}", s.withUser(s.handleDeleteBook))
	mux.HandleFunc("PUT /api/books/{id}/cover", s.withUser(s.handleUploadCover))
	mux.HandleFunc("GET /api/books/{id}/cover", s.handleGetCover)

	mux.HandleFunc("GET /api/search", s.handleSearch)

	mux.HandleFunc("POST /api/books/{id}/reviews", s.withUser(s.handleCreateReview))
	mux.HandleFunc("GET /api/books/{id}/reviews", s.handleListBookReviews)
	mux.HandleFunc("GET /api/books/{id}/reviews/stats", s.handleReviewStats)
	mux.HandleFunc("GET /api/reviews/user/{userId}", s.handleListUserReviews)
	mux.HandleFunc("GET /api/reviews/my-reviews", s.withUser(s.handleMyReviews))
	mux.HandleFunc("GET /api/reviews/{id}", s.handleGetReview)
	mux.HandleFunc("PUT /api/reviews/{id}", s.withUser(s.handleUpdateReview))
	mux.HandleFunc("DELETE /api/reviews/{id}", s.withUser(s.handleDeleteReview))
	mux.HandleFunc("POST /api/reviews/{id}/like", s.withUser(s.handleToggleLike))

	var h http.Handler = mux
	h = util.WithRequestLog(h)
	h = util.WithSecurityHeaders(h)
	h = util.WithCORS(h)
	h = util.WithRequestID(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withUser requires a valid bearer token and hands the resolved user to
// the wrapped handler.
func (s *Server) withUser(next func(http.ResponseWriter, *http.Request, domain.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		user, err := s.app.UserFromToken(token)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		next(w, r, user)
	}
}

// rateLimited rejects requests over the per-IP quota before they reach
// the handler. A nil limiter disables the check.
func (s *Server) rateLimited(limiter *ratelimit.FixedWindowLimiter, next http.HandlerFunc) http.HandlerFunc {
	if limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(util.ClientIP(r, s.opts.TrustProxyHeaders)) {
			writeError(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
