package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hmelo/skyarena-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when nickname/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPlayerExists is returned when registering an existing nickname.
	ErrPlayerExists = errors.New("player already exists")
	// ErrInvalidNickname is returned when the nickname doesn't meet constraints.
	ErrInvalidNickname = errors.New("invalid nickname")
	// ErrInvalidPassword is returned when the password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

// Service provides authentication operations.
type Service struct {
	store     store.Store
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(st store.Store, jwtConfig *JWTConfig) *Service {
	return &Service{store: st, jwtConfig: jwtConfig}
}

// Register creates a new player with hashed password and returns a JWT token.
func (s *Service) Register(ctx context.Context, nickname, password string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if len(nickname) < 3 || len(nickname) > 32 {
		return "", ErrInvalidNickname
	}
	if len(password) < 6 {
		return "", ErrInvalidPassword
	}

	if existing, err := s.store.FindPlayerByNickname(ctx, nickname); err == nil && existing != nil {
		return "", ErrPlayerExists
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	player, err := s.store.CreatePlayer(ctx, nickname, hashed, false)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return "", ErrPlayerExists
		}
		return "", fmt.Errorf("create player: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, player.ID, player.Nickname, false)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Login verifies credentials and returns a JWT token.
func (s *Service) Login(ctx context.Context, nickname, password string) (string, error) {
	player, err := s.store.FindPlayerByNickname(ctx, strings.TrimSpace(nickname))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("find player: %w", err)
	}

	if err := ComparePassword(player.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, player.ID, player.Nickname, player.IsGuest)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Guest creates a throwaway profile with a generated nickname and returns a
// JWT token for it.
func (s *Service) Guest(ctx context.Context) (string, error) {
	nickname := "guest-" + uuid.NewString()[:8]

	player, err := s.store.CreatePlayer(ctx, nickname, "", true)
	if err != nil {
		return "", fmt.Errorf("create guest: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, player.ID, player.Nickname, true)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT and returns its claims.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, token)
}
