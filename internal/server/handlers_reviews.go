package server

import (
	"net/http"

	"bookrate/internal/validate"
	"bookrate/pkg/domain"
)

type reviewRequest struct {
	Rating     int    `json:"rating" validate:"required,gte=1,lte=5"`
	ReviewText string `json:"reviewText" validate:"required,min=10,max=1000"`
}

type reviewListResponse struct {
	Reviews    []domain.Review `json:"reviews"`
	Pagination domain.PageMeta `json:"pagination"`
}

type likeResponse struct {
	LikeCount int  `json:"likeCount"`
	Liked     bool `json:"liked"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validate.Struct(req); errs != nil {
		writeFieldErrors(w, http.StatusBadRequest, "validation failed", errs)
		return
	}
	review, err := s.app.CreateReview(user, r.PathValue("id"), req.Rating, req.ReviewText)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, review)
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	review, err := s.app.GetReview(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, review)
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validate.Struct(req); errs != nil {
		writeFieldErrors(w, http.StatusBadRequest, "validation failed", errs)
		return
	}
	review, err := s.app.UpdateReview(user, r.PathValue("id"), req.Rating, req.ReviewText)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, review)
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteReview(user, r.PathValue("id")); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "review deleted")
}

func (s *Server) handleListBookReviews(w http.ResponseWriter, r *http.Request) {
	reviews, meta, err := s.app.ListBookReviews(r.PathValue("id"), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, reviewListResponse{Reviews: reviews, Pagination: meta})
}

func (s *Server) handleListUserReviews(w http.ResponseWriter, r *http.Request) {
	reviews, meta, err := s.app.ListUserReviews(r.PathValue("userId"), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, reviewListResponse{Reviews: reviews, Pagination: meta})
}

func (s *Server) handleMyReviews(w http.ResponseWriter, r *http.Request, user domain.User) {
	reviews, meta, err := s.app.ListUserReviews(user.ID, queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, reviewListResponse{Reviews: reviews, Pagination: meta})
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request, user domain.User) {
	count, liked, err := s.app.ToggleLike(user, r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, likeResponse{LikeCount: count, Liked: liked})
}

func (s *Server) handleReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.ReviewStats(r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}
