package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sahod/internal/auth"
	"sahod/internal/core"
	"sahod/internal/storage"
)

const refreshTokenTTL = 30 * 24 * time.Hour

// TokenPair is what a successful login or refresh hands to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	repo   *storage.Repository
	tokens *auth.TokenManager
}

func NewAuthService(repo *storage.Repository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{repo: repo, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, email, password, displayName string) (*core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("invalid email address")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &core.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, core.ErrEmailTaken
		}
		return nil, fmt.Errorf("register user: %w", err)
	}

	slog.InfoContext(ctx, "Registered user", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.UserByEmail(ctx, email)
	if errors.Is(err, core.ErrUserNotFound) {
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, core.ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. A reused or expired token fails with invalid credentials.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.repo.ConsumeRefreshToken(ctx, auth.HashRefreshToken(refreshToken))
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}

	user, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	return s.issueTokens(ctx, user)
}

// Logout revokes all of the user's refresh tokens.
func (s *AuthService) Logout(ctx context.Context, userID int64) error {
	return s.repo.RevokeUserTokens(ctx, userID)
}

func (s *AuthService) issueTokens(ctx context.Context, user *core.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	raw, hash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateRefreshToken(ctx, user.ID, hash, time.Now().Add(refreshTokenTTL)); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: raw}, nil
}
