package bank

import (
	"fmt"
	"sort"
	"strings"

	"adaptive-quiz-service/internal/domain"
)

// Bank is an immutable set of questions. It is safe for concurrent reads.
type Bank struct {
	questions []domain.Question
	byID      map[string]int
}

// New validates questions and builds a bank from them.
func New(questions []domain.Question) (*Bank, error) {
	if len(questions) == 0 {
		return nil, domain.ErrEmptyQuestionSet
	}

	b := &Bank{
		questions: make([]domain.Question, 0, len(questions)),
		byID:      make(map[string]int, len(questions)),
	}
	for i, q := range questions {
		if reason := validate(q); reason != "" {
			return nil, fmt.Errorf("%w: question %d (id %q): %s", domain.ErrMalformedQuestionSet, i, q.ID, reason)
		}
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("%w: question %d: duplicate id %q", domain.ErrMalformedQuestionSet, i, q.ID)
		}
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		b.byID[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
	}
	return b, nil
}

// validate returns the reason q is unusable, or "" when it is fine.
func validate(q domain.Question) string {
	switch {
	case strings.TrimSpace(q.ID) == "":
		return "missing id"
	case strings.TrimSpace(q.Prompt) == "":
		return "missing question text"
	case strings.TrimSpace(q.Topic) == "":
		return "missing topic"
	case q.Answer == "":
		return "missing answer"
	case len(q.Options) < 2:
		return fmt.Sprintf("need at least 2 options, got %d", len(q.Options))
	case !q.Difficulty.Valid():
		return fmt.Sprintf("difficulty %d outside %d..%d", q.Difficulty, domain.MinDifficulty, domain.MaxDifficulty)
	}
	matches := 0
	for _, opt := range q.Options {
		if opt == q.Answer {
			matches++
		}
	}
	if matches != 1 {
		return fmt.Sprintf("answer %q must appear exactly once among options, found %d", q.Answer, matches)
	}
	return ""
}

// Len returns the number of questions in the bank.
func (b *Bank) Len() int {
	return len(b.questions)
}

// Get looks up a question by id.
func (b *Bank) Get(id string) (domain.Question, bool) {
	idx, ok := b.byID[id]
	if !ok {
		return domain.Question{}, false
	}
	return b.questions[idx], true
}

// Questions returns every question in load order.
func (b *Bank) Questions() []domain.Question {
	out := make([]domain.Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// AvailableExcluding returns all questions whose id is not in exclude.
func (b *Bank) AvailableExcluding(exclude map[string]struct{}) []domain.Question {
	out := make([]domain.Question, 0, len(b.questions))
	for _, q := range b.questions {
		if _, skip := exclude[q.ID]; skip {
			continue
		}
		out = append(out, q)
	}
	return out
}

// FilterByDifficulty keeps the questions at the given tier.
func FilterByDifficulty(questions []domain.Question, tier domain.Difficulty) []domain.Question {
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.Difficulty == tier {
			out = append(out, q)
		}
	}
	return out
}

// Topics returns the distinct topics, sorted.
func (b *Bank) Topics() []string {
	seen := make(map[string]struct{})
	for _, q := range b.questions {
		seen[q.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(seen))
	for t := range seen {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// CountByDifficulty returns how many questions sit at each tier.
func (b *Bank) CountByDifficulty() map[domain.Difficulty]int {
	counts := make(map[domain.Difficulty]int, int(domain.MaxDifficulty))
	for d := domain.MinDifficulty; d <= domain.MaxDifficulty; d++ {
		counts[d] = 0
	}
	for _, q := range b.questions {
		counts[q.Difficulty]++
	}
	return counts
}
