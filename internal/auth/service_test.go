package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartbank/smartbank/internal/config"
	"github.com/smartbank/smartbank/internal/identity"
)

func newTestService(t *testing.T) (*Service, *identity.Service) {
	t.Helper()
	ids := identity.NewService(identity.NewMemoryRepository())
	cfg := config.Config{JWTSecret: "test-secret", AccessTokenTTL: 30 * time.Minute}
	return NewService(cfg, ids), ids
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, ids := newTestService(t)
	ctx := context.Background()

	user, err := ids.Register(ctx, identity.Credentials{Email: "alice@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, token, err := svc.Login(ctx, "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token.TokenType != "bearer" || token.AccessToken == "" {
		t.Fatalf("unexpected token: %+v", token)
	}

	uid, err := svc.Verify(token.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if uid != user.ID {
		t.Fatalf("expected subject %s, got %s", user.ID, uid)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc, ids := newTestService(t)
	ctx := context.Background()

	if _, err := ids.Register(ctx, identity.Credentials{Email: "bob@example.com", Password: "hunter2hunter2"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "bob@example.com", "wrong-password"); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	signed, err := SignToken("user-1", "a@b.c", "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	svc, _ := newTestService(t)
	if _, err := svc.Verify(signed); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	signed, err := SignToken("user-1", "a@b.c", "other-secret", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	svc, _ := newTestService(t)
	if _, err := svc.Verify(signed); err == nil {
		t.Fatalf("expected signature mismatch to fail verification")
	}
}
