package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"adaptive-quiz-service/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "quiz.db"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	id, err := store.Register(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := store.Register(ctx, "alice", "pw2"); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	got, err := store.Authenticate(ctx, "alice", "pw")
	if err != nil || got != id {
		t.Fatalf("authenticate: id=%q err=%v", got, err)
	}
	if _, err := store.Authenticate(ctx, "alice", "bad"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := store.Authenticate(ctx, "nobody", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestResultsAndStats(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	alice, _ := store.Register(ctx, "alice", "pw")
	bob, _ := store.Register(ctx, "bob", "pw")

	sessions := []domain.SessionResult{
		{UserID: alice, Score: 1, Total: 2, Answers: []domain.TopicOutcome{{Topic: "loops", Correct: true}, {Topic: "strings", Correct: false}}},
		{UserID: alice, Score: 2, Total: 2, Answers: []domain.TopicOutcome{{Topic: "loops", Correct: true}, {Topic: "strings", Correct: true}}},
		{UserID: bob, Score: 4, Total: 5, Answers: []domain.TopicOutcome{{Topic: "loops", Correct: false}}},
	}
	for _, r := range sessions {
		id, err := store.RecordSession(ctx, r)
		if err != nil {
			t.Fatalf("record: %v", err)
		}
		if id == "" {
			t.Fatalf("expected session id")
		}
	}

	top, err := store.TopAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0] != (domain.LeaderboardEntry{Username: "bob", MaxScore: 4}) ||
		top[1] != (domain.LeaderboardEntry{Username: "alice", MaxScore: 2}) {
		t.Fatalf("unexpected leaderboard %+v", top)
	}

	acc, err := store.TopicAccuracy(ctx, alice)
	if err != nil {
		t.Fatalf("accuracy: %v", err)
	}
	if len(acc) != 2 ||
		acc[0] != (domain.TopicAccuracy{Topic: "loops", Correct: 2, Total: 2}) ||
		acc[1] != (domain.TopicAccuracy{Topic: "strings", Correct: 1, Total: 2}) {
		t.Fatalf("unexpected accuracy %+v", acc)
	}
}

func TestRecordSessionRequiresKnownUser(t *testing.T) {
	store := openStore(t)
	_, err := store.RecordSession(context.Background(), domain.SessionResult{UserID: "ghost", Score: 1, Total: 1,
		Answers: []domain.TopicOutcome{{Topic: "loops", Correct: true}}})
	if err == nil {
		t.Fatalf("expected foreign key failure for unknown user")
	}
	top, _ := store.TopAccounts(context.Background(), 10)
	if len(top) != 0 {
		t.Fatalf("expected nothing recorded, got %+v", top)
	}
}

func TestRecordSessionIsIdempotentOnSessionID(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	alice, _ := store.Register(ctx, "alice", "pw")
	bob, _ := store.Register(ctx, "bob", "pw")

	result := domain.SessionResult{SessionID: "attempt-1", UserID: alice, Score: 1, Total: 1,
		Answers: []domain.TopicOutcome{{Topic: "loops", Correct: true}}}
	for i := 0; i < 2; i++ {
		id, err := store.RecordSession(ctx, result)
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if id != "attempt-1" {
			t.Fatalf("expected attempt-1, got %q", id)
		}
	}
	if _, err := store.RecordSession(ctx, domain.SessionResult{UserID: bob, Score: 2, Total: 2}); err != nil {
		t.Fatalf("record bob: %v", err)
	}

	acc, err := store.TopicAccuracy(ctx, alice)
	if err != nil {
		t.Fatalf("accuracy: %v", err)
	}
	if len(acc) != 1 || acc[0] != (domain.TopicAccuracy{Topic: "loops", Correct: 1, Total: 1}) {
		t.Fatalf("replayed result was counted twice: %+v", acc)
	}

	top, err := store.TopAccounts(ctx, 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("limit 0 should return every player, got %+v", top)
	}
}
