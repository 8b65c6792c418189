package domain

import "time"

// Difficulty is a question tier. Only MinDifficulty..MaxDifficulty are valid.
type Difficulty int

const (
	MinDifficulty Difficulty = 1
	MaxDifficulty Difficulty = 3
)

// Valid reports whether d is one of the supported tiers.
func (d Difficulty) Valid() bool {
	return d >= MinDifficulty && d <= MaxDifficulty
}

// Harder returns the next tier up, capped at MaxDifficulty.
func (d Difficulty) Harder() Difficulty {
	return min(MaxDifficulty, d+1)
}

// Easier returns the next tier down, floored at MinDifficulty.
func (d Difficulty) Easier() Difficulty {
	return max(MinDifficulty, d-1)
}

// Question is an immutable multiple-choice question from the bank.
type Question struct {
	ID         string     `json:"id"`
	Prompt     string     `json:"question"`
	Options    []string   `json:"options"`
	Answer     string     `json:"answer"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
}

// PublicQuestion is a question with its answer withheld, safe to send to players.
type PublicQuestion struct {
	ID         string     `json:"id"`
	Prompt     string     `json:"question"`
	Options    []string   `json:"options"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
}

// Public strips the correct answer.
func (q Question) Public() PublicQuestion {
	opts := make([]string, len(q.Options))
	copy(opts, q.Options)
	return PublicQuestion{
		ID:         q.ID,
		Prompt:     q.Prompt,
		Options:    opts,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
	}
}

// AnsweredItem is a snapshot of a question together with the user's answer.
type AnsweredItem struct {
	QuestionID string     `json:"questionId"`
	Prompt     string     `json:"question"`
	Answer     string     `json:"answer"`
	Submitted  string     `json:"submitted"`
	Correct    bool       `json:"correct"`
	Topic      string     `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	AnsweredAt time.Time  `json:"answeredAt"`
}

// TopicOutcome is one answered question reduced to what the result store keeps.
type TopicOutcome struct {
	Topic   string `json:"topic"`
	Correct bool   `json:"correct"`
}

// SessionResult is the final tally of a completed session.
type SessionResult struct {
	SessionID   string         `json:"sessionId,omitempty"`
	UserID      string         `json:"userId"`
	Score       int            `json:"score"`
	Total       int            `json:"total"`
	Answers     []TopicOutcome `json:"answers"`
	CompletedAt time.Time      `json:"completedAt"`
}

// Account is a registered player.
type Account struct {
	ID           string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// LeaderboardEntry is a user's best session score.
type LeaderboardEntry struct {
	Username string `json:"username"`
	MaxScore int    `json:"maxScore"`
}

// TopicAccuracy aggregates a user's answers for one topic across all sessions.
type TopicAccuracy struct {
	Topic   string `json:"topic"`
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
}

// Percent returns the share of correct answers in [0, 100].
func (t TopicAccuracy) Percent() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Total) * 100
}
