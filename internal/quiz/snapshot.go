package quiz

import (
	"fmt"

	"adaptive-quiz-service/internal/bank"
	"adaptive-quiz-service/internal/domain"
)

// Snapshot is the serialisable state of a session, used by session stores
// that keep sessions between requests.
type Snapshot struct {
	SessionID string                `json:"sessionId,omitempty"`
	UserID    string                `json:"userId"`
	State     string                `json:"state"`
	History   []domain.AnsweredItem `json:"history"`
	Score     int                   `json:"score"`
	PendingID string                `json:"pendingId,omitempty"`
	Result    *domain.SessionResult `json:"result,omitempty"`
	Recorded  bool                  `json:"recorded"`
}

// Snapshot captures the session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		UserID:    s.userID,
		State:     s.state.String(),
		History:   s.History(),
		Score:     s.score,
		Recorded:  s.recorded,
	}
	if s.pending != nil {
		snap.PendingID = s.pending.ID
	}
	if s.result != nil {
		r := *s.result
		r.Answers = append([]domain.TopicOutcome(nil), s.result.Answers...)
		snap.Result = &r
	}
	return snap
}

// Restore rebuilds a session from a snapshot taken against the same bank.
// Snapshots that reference questions missing from b are rejected with
// ErrSessionNotFound.
func Restore(b *bank.Bank, recorder ResultRecorder, snap Snapshot, opts ...Option) (*Session, error) {
	state, err := ParseState(snap.State)
	if err != nil {
		return nil, err
	}

	s := New(snap.UserID, b, recorder, opts...)
	correct := 0
	seen := make(map[string]struct{}, len(snap.History))
	for _, item := range snap.History {
		if _, dup := seen[item.QuestionID]; dup {
			return nil, fmt.Errorf("%w: question %q answered twice", domain.ErrSessionNotFound, item.QuestionID)
		}
		if _, ok := b.Get(item.QuestionID); !ok {
			return nil, fmt.Errorf("%w: answered question %q not in bank", domain.ErrSessionNotFound, item.QuestionID)
		}
		seen[item.QuestionID] = struct{}{}
		if item.Correct {
			correct++
		}
	}
	if correct != snap.Score {
		return nil, fmt.Errorf("%w: score %d does not match %d correct answers", domain.ErrSessionNotFound, snap.Score, correct)
	}

	if snap.SessionID != "" {
		s.id = snap.SessionID
	}
	s.state = state
	s.history = append([]domain.AnsweredItem(nil), snap.History...)
	s.score = snap.Score
	s.recorded = snap.Recorded

	if state == StateAwaitingAnswer {
		q, ok := b.Get(snap.PendingID)
		if !ok {
			return nil, fmt.Errorf("%w: pending question %q not in bank", domain.ErrSessionNotFound, snap.PendingID)
		}
		if _, answered := seen[snap.PendingID]; answered {
			return nil, fmt.Errorf("%w: pending question %q already answered", domain.ErrSessionNotFound, snap.PendingID)
		}
		s.pending = &q
	}
	if snap.Result != nil {
		r := *snap.Result
		s.result = &r
	}
	return s, nil
}
