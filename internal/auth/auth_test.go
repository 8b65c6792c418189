package auth

import (
	"errors"
	"testing"
	"time"

	"adaptive-quiz-service/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestValidateCredentials(t *testing.T) {
	if err := ValidateCredentials("alice", "pw"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, pair := range [][2]string{{"", "pw"}, {"   ", "pw"}, {"alice", ""}} {
		if err := ValidateCredentials(pair[0], pair[1]); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("%q/%q: expected invalid credentials, got %v", pair[0], pair[1], err)
		}
	}
}

func TestTokenIssueAndParse(t *testing.T) {
	svc := NewTokenService("test-secret", time.Hour)
	raw, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := svc.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || claims.Username != "alice" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := NewTokenService("other-secret", time.Hour)
	if _, err := other.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}
}

func TestTokenExpires(t *testing.T) {
	svc := NewTokenService("test-secret", time.Minute)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }
	raw, err := svc.Issue("user-1", "alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := svc.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
