package quiz

import (
	"context"
	"errors"
	"testing"

	"adaptive-quiz-service/internal/domain"
)

func TestSnapshotRoundTripKeepsAttempt(t *testing.T) {
	ctx := context.Background()
	b := mustBank(t, q("Q1", 1, "A"), q("Q2", 2, "B"))
	s := New("u1", b, nil, WithRand(&scriptedRand{}))
	if _, _, err := s.NextQuestion(ctx); err != nil {
		t.Fatalf("next: %v", err)
	}

	restored, err := Restore(b, nil, s.Snapshot())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.ID() != s.ID() || restored.ID() == "" {
		t.Fatalf("attempt id changed: %q -> %q", s.ID(), restored.ID())
	}
	if restored.State() != StateAwaitingAnswer {
		t.Fatalf("expected awaiting answer, got %s", restored.State())
	}
	if p, ok := restored.Pending(); !ok || p.ID != "Q1" {
		t.Fatalf("expected pending Q1, got %+v %v", p, ok)
	}

	restored.Restart()
	if restored.ID() == s.ID() {
		t.Fatalf("restart must start a new attempt")
	}
}

func TestRestoreRejectsSnapshotsThatDoNotMatchTheBank(t *testing.T) {
	b := mustBank(t, q("Q1", 1, "A"))
	item := func(id string, correct bool) domain.AnsweredItem {
		return domain.AnsweredItem{QuestionID: id, Correct: correct, Difficulty: 1}
	}

	tests := []struct {
		name string
		snap Snapshot
	}{
		{"history not in bank", Snapshot{UserID: "u1", State: "in_progress", History: []domain.AnsweredItem{item("GONE-1", false), item("GONE-2", false)}}},
		{"duplicate history", Snapshot{UserID: "u1", State: "in_progress", History: []domain.AnsweredItem{item("Q1", true), item("Q1", true)}, Score: 2}},
		{"score mismatch", Snapshot{UserID: "u1", State: "in_progress", History: []domain.AnsweredItem{item("Q1", true)}, Score: 0}},
		{"pending not in bank", Snapshot{UserID: "u1", State: "awaiting_answer", PendingID: "GONE"}},
		{"pending already answered", Snapshot{UserID: "u1", State: "awaiting_answer", History: []domain.AnsweredItem{item("Q1", false)}, PendingID: "Q1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Restore(b, nil, tt.snap)
			if !errors.Is(err, domain.ErrSessionNotFound) {
				t.Fatalf("expected ErrSessionNotFound, got session=%v err=%v", s, err)
			}
		})
	}
}

func TestRestoreRejectsUnknownState(t *testing.T) {
	b := mustBank(t, q("Q1", 1, "A"))
	if _, err := Restore(b, nil, Snapshot{UserID: "u1", State: "paused"}); err == nil {
		t.Fatalf("expected error for unknown state")
	}
}
