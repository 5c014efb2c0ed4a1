package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookrate/internal/app"
	"bookrate/internal/validate"
	"bookrate/pkg/domain"
	"bookrate/pkg/store"
)

type bookRequest struct {
	Title           string `json:"title" validate:"required,max=200"`
	Author          string `json:"author" validate:"required,max=100"`
	Genre           string `json:"genre" validate:"required,max=50"`
	Description     string `json:"description" validate:"required,max=2000"`
	PublicationDate string `json:"publicationDate" validate:"required"`
	ISBN            string `json:"isbn" validate:"omitempty,isbn"`
}

// toInput validates the request and resolves the publication date.
// Date problems are appended to the field error list so the client
// sees every failure at once.
func (req bookRequest) toInput() (app.BookInput, []validate.FieldError) {
	errs := validate.Struct(req)
	var pub time.Time
	if req.PublicationDate != "" {
		t, err := parseDate(req.PublicationDate)
		switch {
		case err != nil:
			errs = append(errs, validate.FieldError{Field: "publicationDate", Message: "must be a YYYY-MM-DD date or RFC 3339 timestamp"})
		case t.After(time.Now()):
			errs = append(errs, validate.FieldError{Field: "publicationDate", Message: "must not be in the future"})
		default:
			pub = t
		}
	}
	if errs != nil {
		return app.BookInput{}, errs
	}
	return app.BookInput{
		Title:           req.Title,
		Author:          req.Author,
		Genre:           req.Genre,
		Description:     req.Description,
		PublicationDate: pub,
		ISBN:            req.ISBN,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// queryInt parses an integer query parameter, returning 0 when absent
// or malformed so pagination falls back to its defaults.
func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

type bookListResponse struct {
	Books      []domain.Book   `json:"books"`
	Pagination domain.PageMeta `json:"pagination"`
}

type bookDetailResponse struct {
	Book       domain.Book     `json:"book"`
	Reviews    []domain.Review `json:"reviews"`
	Pagination domain.PageMeta `json:"pagination"`
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, errs := req.toInput()
	if errs != nil {
		writeFieldErrors(w, http.StatusBadRequest, "validation failed", errs)
		return
	}
	book, err := s.app.CreateBook(user, in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	filter := store.BookFilter{
		Author: strings.TrimSpace(r.URL.Query().Get("author")),
		Genre:  strings.TrimSpace(r.URL.Query().Get("genre")),
	}
	books, meta, err := s.app.ListBooks(filter, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, bookListResponse{Books: books, Pagination: meta})
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, reviews, meta, err := s.app.GetBookWithReviews(r.PathValue("id"), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, bookDetailResponse{Book: book, Reviews: reviews, Pagination: meta})
}

func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req bookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in, errs := req.toInput()
	if errs != nil {
		writeFieldErrors(w, http.StatusBadRequest, "validation failed", errs)
		return
	}
	book, err := s.app.UpdateBook(user, r.PathValue("id"), in)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteBook(r.Context(), user, r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "book deleted")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	books, meta, err := s.app.SearchBooks(q.Get("q"), q.Get("type"), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, bookListResponse{Books: books, Pagination: meta})
}

func (s *Server) handleUploadCover(w http.ResponseWriter, r *http.Request, user domain.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxCoverBytes+(1<<16))
	if err := r.ParseMultipartForm(s.opts.MaxCoverBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("cover")
	if err != nil {
		writeError(w, http.StatusBadRequest, "cover file is required")
		return
	}
	defer file.Close()
	if header.Size > s.opts.MaxCoverBytes {
		writeError(w, http.StatusBadRequest, "cover image is too large")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "cover must be an image")
		return
	}
	if err := s.app.UploadCover(r.Context(), user, r.PathValue("id"), file, header.Size, contentType); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "cover uploaded")
}

func (s *Server) handleGetCover(w http.ResponseWriter, r *http.Request) {
	url, err := s.app.CoverURL(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"url": url})
}
