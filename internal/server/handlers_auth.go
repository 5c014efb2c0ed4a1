package server

import (
	"net/http"

	"bookrate/internal/validate"
	"bookrate/pkg/domain"
)

type signupRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validate.Struct(req); errs != nil {
		writeFieldErrors(w, http.StatusBadRequest, "validation failed", errs)
		return
	}
	user, token, err := s.app.SignUp(req.Username, req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validate.Struct(req); errs != nil {
		writeFieldErrors(w, http.StatusBadRequest, "validation failed", errs)
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if err := s.app.Logout(bearerToken(r)); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "logged out")
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeSuccess(w, http.StatusOK, user)
}
