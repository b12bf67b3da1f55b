package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

func TestPasswordResetService_ClaimInvalidatesEveryOtherToken(t *testing.T) {
	repo := newStubResetRepo()
	svc := NewPasswordResetService(repo, time.Hour, zerolog.Nop())
	ctx := context.Background()
	alice := &domain.User{ID: "1"}
	bob := &domain.User{ID: "2"}

	var aliceTokens []*domain.PasswordResetToken
	for i := 0; i < 3; i++ {
		tok, err := svc.CreateToken(ctx, alice)
		if err != nil {
			t.Fatalf("CreateToken: %v", err)
		}
		aliceTokens = append(aliceTokens, tok)
	}
	bobToken, _ := svc.CreateToken(ctx, bob)

	claimed, err := svc.ClaimToken(ctx, aliceTokens[1])
	if err != nil {
		t.Fatalf("ClaimToken: %v", err)
	}
	if !claimed.Claimed {
		t.Fatalf("expected claimed token")
	}

	for i, tok := range aliceTokens {
		_, err := svc.GetValidToken(ctx, ports.PasswordResetInput{Token: tok.Token})
		if !errors.Is(err, domain.ErrInvalidTokenRequest) {
			t.Fatalf("token %d: expected ErrInvalidTokenRequest, got %v", i, err)
		}
	}
	if _, err := svc.GetValidToken(ctx, ports.PasswordResetInput{Token: bobToken.Token}); err != nil {
		t.Fatalf("other user's token must stay valid: %v", err)
	}
}

func TestPasswordResetService_ClaimTwice(t *testing.T) {
	repo := newStubResetRepo()
	svc := NewPasswordResetService(repo, time.Hour, zerolog.Nop())
	tok, _ := svc.CreateToken(context.Background(), &domain.User{ID: "1"})

	if _, err := svc.ClaimToken(context.Background(), tok); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := svc.ClaimToken(context.Background(), tok); !errors.Is(err, domain.ErrInvalidTokenRequest) {
		t.Fatalf("expected ErrInvalidTokenRequest, got %v", err)
	}
}

func TestPasswordResetService_ExpiredTokenDeactivated(t *testing.T) {
	repo := newStubResetRepo()
	svc := NewPasswordResetService(repo, time.Minute, zerolog.Nop())
	tok, _ := svc.CreateToken(context.Background(), &domain.User{ID: "1"})
	svc.now = func() time.Time { return time.Now().Add(time.Hour) }

	_, err := svc.GetValidToken(context.Background(), ports.PasswordResetInput{Token: tok.Token})
	if !errors.Is(err, domain.ErrInvalidTokenRequest) || !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected expired invalid token request, got %v", err)
	}
	stored, _ := repo.FindByToken(context.Background(), tok.Token)
	if stored.Active {
		t.Fatalf("expected expired token deactivated")
	}
}

func TestPasswordResetService_UnknownToken(t *testing.T) {
	svc := NewPasswordResetService(newStubResetRepo(), time.Hour, zerolog.Nop())

	_, err := svc.GetValidToken(context.Background(), ports.PasswordResetInput{Token: "nope"})
	if !errors.Is(err, domain.ErrInvalidTokenRequest) {
		t.Fatalf("expected ErrInvalidTokenRequest, got %v", err)
	}
}

func TestPasswordResetService_FailedClaimKeepsSiblingsUsable(t *testing.T) {
	repo := newStubResetRepo()
	svc := NewPasswordResetService(repo, time.Minute, zerolog.Nop())
	ctx := context.Background()
	user := &domain.User{ID: "1"}

	first, _ := svc.CreateToken(ctx, user)
	valid, err := svc.GetValidToken(ctx, ports.PasswordResetInput{Token: first.Token})
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}

	// The first token expires between validation and claim.
	start := time.Now()
	svc.now = func() time.Time { return start.Add(2 * time.Minute) }
	second, _ := svc.CreateToken(ctx, user)

	if _, err := svc.ClaimToken(ctx, valid); !errors.Is(err, domain.ErrInvalidTokenRequest) {
		t.Fatalf("expected ErrInvalidTokenRequest, got %v", err)
	}

	if _, err := svc.GetValidToken(ctx, ports.PasswordResetInput{Token: second.Token}); err != nil {
		t.Fatalf("sibling must stay usable after a failed claim: %v", err)
	}
	claimed, err := svc.ClaimToken(ctx, second)
	if err != nil || !claimed.Claimed {
		t.Fatalf("sibling claim: %v", err)
	}
}
