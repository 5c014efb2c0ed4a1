package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"bookrate/internal/app"
	"bookrate/internal/util"
	"bookrate/internal/validate"
	"bookrate/pkg/auth"
)

// envelope is the uniform response shape. data carries success payloads,
// message and errors carry failures.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Status: "success", Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: "success", Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Status: "error", Message: message})
}

// writeFieldErrors reports validation failures with the full field list.
func writeFieldErrors(w http.ResponseWriter, status int, message string, errs []validate.FieldError) {
	writeJSON(w, status, envelope{Status: "error", Message: message, Errors: errs})
}

// writeAppError maps an operation error to its HTTP status. Unknown
// errors are logged with the request context and hidden behind a
// generic internal message.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidCredentials), errors.Is(err, app.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrBookNotFound), errors.Is(err, app.ErrReviewNotFound),
		errors.Is(err, app.ErrUserNotFound), errors.Is(err, app.ErrNoCover):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrUsernameTaken):
		writeFieldErrors(w, http.StatusConflict, err.Error(),
			[]validate.FieldError{{Field: "username", Message: "is already taken"}})
	case errors.Is(err, app.ErrEmailTaken):
		writeFieldErrors(w, http.StatusConflict, err.Error(),
			[]validate.FieldError{{Field: "email", Message: "is already registered"}})
	case errors.Is(err, app.ErrDuplicateBook), errors.Is(err, app.ErrDuplicateReview):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrSearchQueryRequired), errors.Is(err, app.ErrInvalidSearchType),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrCoversDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads a request body into dst, capping the body size.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
