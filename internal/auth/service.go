package auth

import (
	"context"

	"github.com/smartbank/smartbank/internal/config"
	"github.com/smartbank/smartbank/internal/identity"
)

// Service validates credentials and issues access tokens.
type Service struct {
	cfg config.Config
	ids *identity.Service
}

// NewService constructs an auth service.
func NewService(cfg config.Config, ids *identity.Service) *Service {
	return &Service{cfg: cfg, ids: ids}
}

// Token is an issued access token and its lifetime in seconds.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login authenticates the credentials and signs an access token.
func (s *Service) Login(ctx context.Context, email, password string) (identity.User, Token, error) {
	user, err := s.ids.Authenticate(ctx, email, password)
	if err != nil {
		return identity.User{}, Token{}, err
	}
	signed, err := SignToken(user.ID, user.Email, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return identity.User{}, Token{}, err
	}
	return user, Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.cfg.AccessTokenTTL.Seconds()),
	}, nil
}

// Verify checks a bearer token and returns the authenticated user ID.
func (s *Service) Verify(tokenStr string) (string, error) {
	claims, err := ParseToken(tokenStr, s.cfg.JWTSecret)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
