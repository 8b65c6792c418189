package memory

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"adaptive-quiz-service/internal/domain"
)

func TestStoreAccounts(t *testing.T) {
	ctx := context.Background()
	store := NewStore(bcrypt.MinCost)

	id, err := store.Register(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := store.Register(ctx, "alice", "other"); !errors.Is(err, domain.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	if _, err := store.Register(ctx, "", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for blank username, got %v", err)
	}

	got, err := store.Authenticate(ctx, "alice", "pw")
	if err != nil || got != id {
		t.Fatalf("authenticate: id=%q err=%v", got, err)
	}
	if _, err := store.Authenticate(ctx, "alice", "nope"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := store.Authenticate(ctx, "bob", "pw"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestStoreStats(t *testing.T) {
	ctx := context.Background()
	store := NewStore(bcrypt.MinCost)
	alice, _ := store.Register(ctx, "alice", "pw")
	bob, _ := store.Register(ctx, "bob", "pw")
	carol, _ := store.Register(ctx, "carol", "pw")
	_, _ = store.Register(ctx, "dave", "pw") // never plays

	record := func(userID string, score int, answers ...domain.TopicOutcome) {
		t.Helper()
		if _, err := store.RecordSession(ctx, domain.SessionResult{UserID: userID, Score: score, Total: len(answers), Answers: answers}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	record(alice, 1, domain.TopicOutcome{Topic: "loops", Correct: true}, domain.TopicOutcome{Topic: "strings", Correct: false})
	record(alice, 3, domain.TopicOutcome{Topic: "loops", Correct: true}, domain.TopicOutcome{Topic: "loops", Correct: true}, domain.TopicOutcome{Topic: "strings", Correct: true})
	record(bob, 3, domain.TopicOutcome{Topic: "loops", Correct: true})
	record(carol, 2, domain.TopicOutcome{Topic: "loops", Correct: false})

	top, err := store.TopAccounts(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	want := []domain.LeaderboardEntry{{Username: "alice", MaxScore: 3}, {Username: "bob", MaxScore: 3}, {Username: "carol", MaxScore: 2}}
	if len(top) != len(want) {
		t.Fatalf("expected %v, got %v", want, top)
	}
	for i := range want {
		if top[i] != want[i] {
			t.Fatalf("entry %d: expected %+v, got %+v", i, want[i], top[i])
		}
	}
	if limited, _ := store.TopAccounts(ctx, 1); len(limited) != 1 || limited[0].Username != "alice" {
		t.Fatalf("expected limit 1 to keep alice, got %v", limited)
	}

	acc, err := store.TopicAccuracy(ctx, alice)
	if err != nil {
		t.Fatalf("accuracy: %v", err)
	}
	if len(acc) != 2 ||
		acc[0] != (domain.TopicAccuracy{Topic: "loops", Correct: 3, Total: 3}) ||
		acc[1] != (domain.TopicAccuracy{Topic: "strings", Correct: 1, Total: 2}) {
		t.Fatalf("unexpected accuracy %+v", acc)
	}
	if acc[1].Percent() != 50 {
		t.Fatalf("expected 50%%, got %v", acc[1].Percent())
	}
}

func TestRecordSessionIsIdempotentOnSessionID(t *testing.T) {
	ctx := context.Background()
	store := NewStore(bcrypt.MinCost)
	alice, _ := store.Register(ctx, "alice", "pw")

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

	acc, err := store.TopicAccuracy(ctx, alice)
	if err != nil {
		t.Fatalf("accuracy: %v", err)
	}
	if len(acc) != 1 || acc[0] != (domain.TopicAccuracy{Topic: "loops", Correct: 1, Total: 1}) {
		t.Fatalf("replayed result was counted twice: %+v", acc)
	}
	top, _ := store.TopAccounts(ctx, 0)
	if len(top) != 1 || top[0].MaxScore != 1 {
		t.Fatalf("unexpected leaderboard %+v", top)
	}
}
