package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bookrate/pkg/auth"
	"bookrate/pkg/domain"
	"bookrate/pkg/store"
)

// SignUp registers a new account and issues a session token. Username and
// email collisions surface as ErrUsernameTaken / ErrEmailTaken so the
// response can name the conflicting field.
func (a *App) SignUp(username, email, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	if _, ok, err := a.store.GetUserByUsername(username); err != nil {
		return domain.User{}, "", fmt.Errorf("check username: %w", err)
	} else if ok {
		return domain.User{}, "", ErrUsernameTaken
	}
	if _, ok, err := a.store.GetUserByEmail(email); err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	} else if ok {
		return domain.User{}, "", ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := a.store.CreateUser(user); err != nil {
		// A concurrent signup can slip past the pre-checks; the unique
		// indexes settle the race. Re-query to name the field.
		if errors.Is(err, store.ErrDuplicateUser) {
			if _, ok, qerr := a.store.GetUserByUsername(username); qerr == nil && ok {
				return domain.User{}, "", ErrUsernameTaken
			}
			return domain.User{}, "", ErrEmailTaken
		}
		return domain.User{}, "", fmt.Errorf("create user: %w", err)
	}

	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("new session: %w", err)
	}
	created, ok, err := a.store.GetUserByID(user.ID)
	if err != nil || !ok {
		return user, token, nil
	}
	return created, token, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password return the same error so probes cannot tell accounts apart.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("new session: %w", err)
	}
	return user, token, nil
}

// Logout revokes the session token. Revoking an already-dead token is
// not an error.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a bearer token to its user. The token is
// rejected when the user behind it no longer exists.
func (a *App) UserFromToken(token string) (domain.User, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, ErrInvalidToken
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrInvalidToken
	}
	return user, nil
}
