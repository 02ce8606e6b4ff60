package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

type RegisterInput struct {
	Username    string `json:"username" validate:"required,min=3,max=40,alphanum"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	DisplayName string `json:"displayName" validate:"max=80"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var errInvalidCredentials = domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)

// Register creates an account and signs it in. The first account becomes an
// admin; later ones start as members.
func (s *Service) Register(ctx context.Context, input RegisterInput) (store.User, string, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if err := s.validate.Struct(input); err != nil {
		return store.User{}, "", err
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return store.User{}, "", err
	}

	user, err := s.createAccount(ctx, store.User{
		Username:     input.Username,
		Email:        input.Email,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.User{}, "", domainError(http.StatusConflict, "USERNAME_TAKEN", "Username already registered", nil)
		}
		return store.User{}, "", err
	}

	cookie, err := s.sessions.Start(ctx, user.ID)
	if err != nil {
		return store.User{}, "", err
	}
	s.logger.Info("auth.register", "user_id", user.ID, "role", user.Role)
	return user, cookie, nil
}

// createAccount assigns the role and inserts the user while holding
// registerMu, so concurrent first registrations yield exactly one admin
// within this process.
func (s *Service) createAccount(ctx context.Context, user store.User) (store.User, error) {
	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	existing, err := s.store.ListUsers(ctx)
	if err != nil {
		return store.User{}, err
	}
	user.Role = string(rbac.RoleMember)
	if len(existing) == 0 {
		user.Role = string(rbac.RoleAdmin)
	}
	return s.store.CreateUser(ctx, user)
}

func (s *Service) Login(ctx context.Context, input LoginInput) (store.User, string, error) {
	if err := s.validate.Struct(input); err != nil {
		return store.User{}, "", err
	}
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		if isNotFound(err) {
			return store.User{}, "", errInvalidCredentials
		}
		return store.User{}, "", err
	}
	if err := auth.CheckPassword(user.PasswordHash, input.Password); err != nil {
		return store.User{}, "", errInvalidCredentials
	}
	cookie, err := s.sessions.Start(ctx, user.ID)
	if err != nil {
		return store.User{}, "", err
	}
	return user, cookie, nil
}

func (s *Service) Logout(ctx context.Context, rawCookie string) error {
	if rawCookie == "" {
		return nil
	}
	return s.sessions.End(ctx, rawCookie)
}

// Authenticate resolves a session cookie to the acting user.
func (s *Service) Authenticate(ctx context.Context, rawCookie string) (Actor, error) {
	if rawCookie == "" {
		return Actor{}, errUnauthorized
	}
	userID, err := s.sessions.Resolve(ctx, rawCookie)
	if err != nil {
		return Actor{}, err
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return Actor{}, errUnauthorized
		}
		return Actor{}, err
	}
	return Actor{
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        rbac.Normalize(user.Role),
	}, nil
}
