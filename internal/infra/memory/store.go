package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/domain"
)

// Store keeps accounts and session results in process memory. It implements
// both app.AccountStore and app.ResultStore.
type Store struct {
	bcryptCost int
	clock      func() time.Time

	mu        sync.RWMutex
	accounts  map[string]domain.Account // by username
	usernames map[string]string         // user id -> username
	results   []domain.SessionResult
	recorded  map[string]struct{} // result ids already stored
}

func NewStore(bcryptCost int) *Store {
	return &Store{
		bcryptCost: bcryptCost,
		clock:      time.Now,
		accounts:   make(map[string]domain.Account),
		usernames:  make(map[string]string),
		recorded:   make(map[string]struct{}),
	}
}

func (s *Store) Register(_ context.Context, username, password string) (string, error) {
	if err := auth.ValidateCredentials(username, password); err != nil {
		return "", err
	}
	username = strings.TrimSpace(username)
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[username]; exists {
		return "", domain.ErrDuplicateUsername
	}
	acct := domain.Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.clock(),
	}
	s.accounts[username] = acct
	s.usernames[acct.ID] = username
	return acct.ID, nil
}

func (s *Store) Authenticate(_ context.Context, username, password string) (string, error) {
	s.mu.RLock()
	acct, ok := s.accounts[strings.TrimSpace(username)]
	s.mu.RUnlock()
	if !ok {
		return "", domain.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(acct.PasswordHash, password); err != nil {
		return "", err
	}
	return acct.ID, nil
}

// RecordSession stores result once per SessionID; a repeat is a no-op.
func (s *Store) RecordSession(_ context.Context, result domain.SessionResult) (string, error) {
	if result.SessionID == "" {
		result.SessionID = uuid.NewString()
	}
	result.Answers = append([]domain.TopicOutcome(nil), result.Answers...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.recorded[result.SessionID]; dup {
		return result.SessionID, nil
	}
	s.recorded[result.SessionID] = struct{}{}
	s.results = append(s.results, result)
	return result.SessionID, nil
}

func (s *Store) TopAccounts(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	best := make(map[string]int)
	for _, r := range s.results {
		name, ok := s.usernames[r.UserID]
		if !ok {
			continue
		}
		if cur, seen := best[name]; !seen || r.Score > cur {
			best[name] = r.Score
		}
	}
	s.mu.RUnlock()

	entries := make([]domain.LeaderboardEntry, 0, len(best))
	for name, score := range best {
		entries = append(entries, domain.LeaderboardEntry{Username: name, MaxScore: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].MaxScore != entries[j].MaxScore {
			return entries[i].MaxScore > entries[j].MaxScore
		}
		return entries[i].Username < entries[j].Username
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) TopicAccuracy(_ context.Context, userID string) ([]domain.TopicAccuracy, error) {
	s.mu.RLock()
	byTopic := make(map[string]*domain.TopicAccuracy)
	for _, r := range s.results {
		if r.UserID != userID {
			continue
		}
		for _, a := range r.Answers {
			acc, ok := byTopic[a.Topic]
			if !ok {
				acc = &domain.TopicAccuracy{Topic: a.Topic}
				byTopic[a.Topic] = acc
			}
			acc.Total++
			if a.Correct {
				acc.Correct++
			}
		}
	}
	s.mu.RUnlock()

	out := make([]domain.TopicAccuracy, 0, len(byTopic))
	for _, acc := range byTopic {
		out = append(out, *acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}
