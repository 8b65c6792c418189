// Package quiz implements the adaptive session state machine: it deals
// questions from a bank one at a time, stepping the difficulty tier up after
// a correct answer and down after a miss, and records the final tally once
// no eligible question remains.
package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"adaptive-quiz-service/internal/bank"
	"adaptive-quiz-service/internal/domain"
)

// State is the lifecycle position of a session.
type State int

const (
	StateInProgress State = iota
	StateAwaitingAnswer
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "in_progress"
	case StateAwaitingAnswer:
		return "awaiting_answer"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState is the inverse of State.String.
func ParseState(raw string) (State, error) {
	switch raw {
	case "in_progress", "":
		return StateInProgress, nil
	case "awaiting_answer":
		return StateAwaitingAnswer, nil
	case "completed":
		return StateCompleted, nil
	}
	return 0, fmt.Errorf("unknown session state %q", raw)
}

// Rand is the random source used to draw among candidates. *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// ResultRecorder persists a completed session and returns its id.
// result.SessionID is set to the attempt id; recording the same id twice
// must store it once.
type ResultRecorder interface {
	RecordSession(ctx context.Context, result domain.SessionResult) (string, error)
}

// Option configures a Session.
type Option func(*Session)

// WithRand overrides the random source.
func WithRand(r Rand) Option {
	return func(s *Session) { s.rnd = r }
}

// WithClock overrides the clock used for answer and completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is one user's quiz attempt. It is not safe for concurrent use;
// callers serialise operations on the same session.
type Session struct {
	id       string
	userID   string
	bank     *bank.Bank
	recorder ResultRecorder
	rnd      Rand
	now      func() time.Time

	state    State
	history  []domain.AnsweredItem
	score    int
	pending  *domain.Question
	result   *domain.SessionResult
	recorded bool
}

// New starts a fresh session for userID against b.
func New(userID string, b *bank.Bank, recorder ResultRecorder, opts ...Option) *Session {
	s := &Session{
		userID:   userID,
		bank:     b,
		recorder: recorder,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.start()
	return s
}

func (s *Session) start() {
	s.id = uuid.NewString()
	s.state = StateInProgress
	s.history = nil
	s.score = 0
	s.pending = nil
	s.result = nil
	s.recorded = false
}

// NextQuestion deals the next question. ok is false when the session has
// just completed; err is then non-nil only if recording the result failed.
// While a question is pending it is returned again without a new draw.
func (s *Session) NextQuestion(ctx context.Context) (q domain.Question, ok bool, err error) {
	switch s.state {
	case StateCompleted:
		return domain.Question{}, false, domain.ErrSessionAlreadyComplete
	case StateAwaitingAnswer:
		return *s.pending, true, nil
	}

	candidates := s.candidates()
	if len(candidates) == 0 {
		s.state = StateCompleted
		_, err := s.Finalize(ctx)
		return domain.Question{}, false, err
	}

	picked := candidates[s.rnd.Intn(len(candidates))]
	s.pending = &picked
	s.state = StateAwaitingAnswer
	return picked, true, nil
}

// candidates applies the adaptive rule. There is no fallback to other tiers:
// an empty target tier ends the session even if other questions remain.
func (s *Session) candidates() []domain.Question {
	asked := make(map[string]struct{}, len(s.history))
	for _, item := range s.history {
		asked[item.QuestionID] = struct{}{}
	}
	available := s.bank.AvailableExcluding(asked)
	if len(s.history) == 0 {
		return available
	}
	return bank.FilterByDifficulty(available, s.TargetDifficulty())
}

// TargetDifficulty is the tier the next question must come from. With an
// empty history any tier is eligible and MinDifficulty is returned.
func (s *Session) TargetDifficulty() domain.Difficulty {
	if len(s.history) == 0 {
		return domain.MinDifficulty
	}
	last := s.history[len(s.history)-1]
	if last.Correct {
		return last.Difficulty.Harder()
	}
	return last.Difficulty.Easier()
}

// SubmitAnswer grades option against the pending question and appends it to history.
func (s *Session) SubmitAnswer(option string) (domain.AnsweredItem, error) {
	if s.state != StateAwaitingAnswer || s.pending == nil {
		return domain.AnsweredItem{}, domain.ErrNoPendingQuestion
	}

	q := s.pending
	item := domain.AnsweredItem{
		QuestionID: q.ID,
		Prompt:     q.Prompt,
		Answer:     q.Answer,
		Submitted:  option,
		Correct:    option == q.Answer,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
		AnsweredAt: s.now(),
	}
	s.history = append(s.history, item)
	if item.Correct {
		s.score++
	}
	s.pending = nil
	s.state = StateInProgress
	return item, nil
}

// Finalize builds the session result and hands it to the recorder. It runs
// automatically when the session completes. Once recording succeeds further
// calls return the same result without recording again; after a failure a
// later call retries.
func (s *Session) Finalize(ctx context.Context) (domain.SessionResult, error) {
	if s.state != StateCompleted {
		return domain.SessionResult{}, domain.ErrSessionNotComplete
	}
	if s.result == nil {
		s.result = s.buildResult()
	}
	if s.recorded {
		return *s.result, nil
	}
	if s.recorder != nil {
		id, err := s.recorder.RecordSession(ctx, *s.result)
		if err != nil {
			return *s.result, fmt.Errorf("record session: %w", err)
		}
		if id != "" {
			s.result.SessionID = id
		}
	}
	s.recorded = true
	return *s.result, nil
}

func (s *Session) buildResult() *domain.SessionResult {
	answers := make([]domain.TopicOutcome, 0, len(s.history))
	for _, item := range s.history {
		answers = append(answers, domain.TopicOutcome{Topic: item.Topic, Correct: item.Correct})
	}
	return &domain.SessionResult{
		SessionID:   s.id,
		UserID:      s.userID,
		Score:       s.score,
		Total:       len(s.history),
		Answers:     answers,
		CompletedAt: s.now(),
	}
}

// Restart discards the current attempt and starts over.
func (s *Session) Restart() {
	s.start()
}

// ID identifies this attempt. Restart assigns a new one.
func (s *Session) ID() string { return s.id }

func (s *Session) UserID() string { return s.userID }

func (s *Session) State() State { return s.state }

func (s *Session) Score() int { return s.score }

// Recorded reports whether the final result has been persisted.
func (s *Session) Recorded() bool { return s.recorded }

// History returns a copy of the answered items in chronological order.
func (s *Session) History() []domain.AnsweredItem {
	out := make([]domain.AnsweredItem, len(s.history))
	copy(out, s.history)
	return out
}

// Pending returns the dealt but unanswered question, if any.
func (s *Session) Pending() (domain.Question, bool) {
	if s.pending == nil {
		return domain.Question{}, false
	}
	return *s.pending, true
}

// Result returns the final tally once the session has completed.
func (s *Session) Result() (domain.SessionResult, bool) {
	if s.result == nil {
		return domain.SessionResult{}, false
	}
	return *s.result, true
}

// Progress summarises the session for status displays.
type Progress struct {
	State     string `json:"state"`
	Score     int    `json:"score"`
	Answered  int    `json:"answered"`
	BankSize  int    `json:"bankSize"`
	PendingID string `json:"pendingId,omitempty"`
	Recorded  bool   `json:"recorded"`
}

func (s *Session) Progress() Progress {
	p := Progress{
		State:    s.state.String(),
		Score:    s.score,
		Answered: len(s.history),
		BankSize: s.bank.Len(),
		Recorded: s.recorded,
	}
	if s.pending != nil {
		p.PendingID = s.pending.ID
	}
	return p
}
