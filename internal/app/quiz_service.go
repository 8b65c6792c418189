package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"adaptive-quiz-service/internal/bank"
	"adaptive-quiz-service/internal/domain"
	"adaptive-quiz-service/internal/metrics"
	"adaptive-quiz-service/internal/quiz"
)

// AccountStore registers and authenticates players.
type AccountStore interface {
	Register(ctx context.Context, username, password string) (string, error)
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// StatsReader answers leaderboard and per-topic accuracy queries.
// TopAccounts returns every player when limit <= 0.
type StatsReader interface {
	TopAccounts(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	TopicAccuracy(ctx context.Context, userID string) ([]domain.TopicAccuracy, error)
}

// ResultStore is the append-only log of completed sessions. RecordSession
// is idempotent on result.SessionID.
type ResultStore interface {
	quiz.ResultRecorder
	StatsReader
}

// SessionRepository keeps in-flight sessions between requests (in-memory, Redis, etc).
type SessionRepository interface {
	Get(ctx context.Context, userID string) (quiz.Snapshot, bool, error)
	Save(ctx context.Context, snap quiz.Snapshot) error
	Delete(ctx context.Context, userID string) error
}

// StatsInvalidator is implemented by stats caches that must drop entries
// once a new session is recorded.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// QuizService contains the quiz use cases. Sessions for the same user are
// serialised; different users never contend.
type QuizService struct {
	bank     *bank.Bank
	accounts AccountStore
	results  ResultStore
	sessions SessionRepository
	stats    StatsReader
	metrics  *metrics.Metrics
	log      *zap.Logger
	newRand  func() quiz.Rand
	now      func() time.Time

	locks sync.Map // userID -> *sync.Mutex
}

// Option configures a QuizService.
type Option func(*QuizService)

// WithStats serves leaderboard and accuracy reads from r (typically a cache)
// instead of the result store.
func WithStats(r StatsReader) Option {
	return func(s *QuizService) { s.stats = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *QuizService) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *QuizService) { s.log = l }
}

// WithRandSource sets the random source given to each restored session.
func WithRandSource(f func() quiz.Rand) Option {
	return func(s *QuizService) { s.newRand = f }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

func NewQuizService(b *bank.Bank, accounts AccountStore, results ResultStore, sessions SessionRepository, opts ...Option) *QuizService {
	s := &QuizService{
		bank:     b,
		accounts: accounts,
		results:  results,
		sessions: sessions,
		stats:    results,
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bank exposes the loaded question bank.
func (s *QuizService) Bank() *bank.Bank {
	return s.bank
}

// Register creates an account and returns its id.
func (s *QuizService) Register(ctx context.Context, username, password string) (string, error) {
	userID, err := s.accounts.Register(ctx, username, password)
	if err != nil {
		return "", err
	}
	s.log.Info("account registered", zap.String("username", username), zap.String("user_id", userID))
	return userID, nil
}

// Authenticate returns the id of the account matching the credentials.
func (s *QuizService) Authenticate(ctx context.Context, username, password string) (string, error) {
	return s.accounts.Authenticate(ctx, username, password)
}

// NextResult is either the next question or the final tally.
type NextResult struct {
	Question  *domain.PublicQuestion `json:"question,omitempty"`
	Completed bool                   `json:"completed"`
	Result    *domain.SessionResult  `json:"result,omitempty"`
	Progress  quiz.Progress          `json:"progress"`
}

// Next deals the user's next question, starting a session if none exists.
// A session that completed but failed to record its result retries the
// recording here instead of reporting ErrSessionAlreadyComplete.
func (s *QuizService) Next(ctx context.Context, userID string) (NextResult, error) {
	unlock := s.lock(userID)
	defer unlock()

	session, err := s.loadOrStart(ctx, userID)
	if err != nil {
		return NextResult{}, err
	}

	if session.State() == quiz.StateCompleted && !session.Recorded() {
		result, err := session.Finalize(ctx)
		if saveErr := s.sessions.Save(ctx, session.Snapshot()); saveErr != nil && err == nil {
			err = saveErr
		}
		if err != nil {
			return NextResult{}, err
		}
		return NextResult{Completed: true, Result: &result, Progress: session.Progress()}, nil
	}

	q, ok, err := session.NextQuestion(ctx)
	if errors.Is(err, domain.ErrSessionAlreadyComplete) {
		return NextResult{}, err
	}
	if saveErr := s.sessions.Save(ctx, session.Snapshot()); saveErr != nil && err == nil {
		err = saveErr
	}
	if err != nil {
		return NextResult{}, err
	}

	if !ok {
		result, _ := session.Result()
		s.log.Info("session completed",
			zap.String("user_id", userID),
			zap.Int("score", result.Score),
			zap.Int("total", result.Total),
			zap.String("session_id", result.SessionID))
		return NextResult{Completed: true, Result: &result, Progress: session.Progress()}, nil
	}
	pub := q.Public()
	return NextResult{Question: &pub, Progress: session.Progress()}, nil
}

// AnswerOutcome reports how a submitted answer was graded.
type AnswerOutcome struct {
	QuestionID    string            `json:"questionId"`
	Correct       bool              `json:"correct"`
	Submitted     string            `json:"submitted"`
	CorrectAnswer string            `json:"correctAnswer"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	Score         int               `json:"score"`
	Answered      int               `json:"answered"`
}

// Answer grades option against the user's pending question.
func (s *QuizService) Answer(ctx context.Context, userID, option string) (AnswerOutcome, error) {
	unlock := s.lock(userID)
	defer unlock()

	session, found, err := s.load(ctx, userID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if !found {
		return AnswerOutcome{}, domain.ErrNoPendingQuestion
	}

	item, err := session.SubmitAnswer(option)
	if err != nil {
		return AnswerOutcome{}, err
	}
	if err := s.sessions.Save(ctx, session.Snapshot()); err != nil {
		return AnswerOutcome{}, err
	}
	s.metrics.Answered(item.Difficulty, item.Correct)

	progress := session.Progress()
	return AnswerOutcome{
		QuestionID:    item.QuestionID,
		Correct:       item.Correct,
		Submitted:     item.Submitted,
		CorrectAnswer: item.Answer,
		Difficulty:    item.Difficulty,
		Score:         progress.Score,
		Answered:      progress.Answered,
	}, nil
}

// Restart discards the user's current attempt and starts a new one.
func (s *QuizService) Restart(ctx context.Context, userID string) (quiz.Progress, error) {
	unlock := s.lock(userID)
	defer unlock()

	session, found, err := s.load(ctx, userID)
	if err != nil {
		return quiz.Progress{}, err
	}
	if found {
		session.Restart()
	} else {
		session = s.newSession(userID)
	}
	s.metrics.SessionStarted()
	if err := s.sessions.Save(ctx, session.Snapshot()); err != nil {
		return quiz.Progress{}, err
	}
	return session.Progress(), nil
}

// Status describes the user's session without changing it.
type Status struct {
	quiz.Progress
	Pending *domain.PublicQuestion `json:"pending,omitempty"`
	History []domain.AnsweredItem  `json:"history"`
	Result  *domain.SessionResult  `json:"result,omitempty"`
}

func (s *QuizService) Status(ctx context.Context, userID string) (Status, error) {
	unlock := s.lock(userID)
	defer unlock()

	session, found, err := s.load(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	if !found {
		session = s.newSession(userID)
	}
	st := Status{Progress: session.Progress(), History: session.History()}
	if q, ok := session.Pending(); ok {
		pub := q.Public()
		st.Pending = &pub
	}
	if r, ok := session.Result(); ok {
		st.Result = &r
	}
	return st, nil
}

// Leaderboard returns the best score of each player, highest first.
func (s *QuizService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.stats.TopAccounts(ctx, limit)
}

// TopicAccuracy returns the user's correct/total counts per topic.
func (s *QuizService) TopicAccuracy(ctx context.Context, userID string) ([]domain.TopicAccuracy, error) {
	return s.stats.TopicAccuracy(ctx, userID)
}

func (s *QuizService) loadOrStart(ctx context.Context, userID string) (*quiz.Session, error) {
	session, found, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		session = s.newSession(userID)
		s.metrics.SessionStarted()
	}
	return session, nil
}

func (s *QuizService) load(ctx context.Context, userID string) (*quiz.Session, bool, error) {
	snap, found, err := s.sessions.Get(ctx, userID)
	if err != nil || !found {
		return nil, false, err
	}
	session, err := quiz.Restore(s.bank, s.recorder(), snap, s.sessionOptions()...)
	if err != nil {
		// The bank no longer matches the stored session.
		s.log.Warn("discarding unrestorable session", zap.String("user_id", userID), zap.Error(err))
		if delErr := s.sessions.Delete(ctx, userID); delErr != nil {
			return nil, false, delErr
		}
		return nil, false, nil
	}
	return session, true, nil
}

func (s *QuizService) newSession(userID string) *quiz.Session {
	return quiz.New(userID, s.bank, s.recorder(), s.sessionOptions()...)
}

func (s *QuizService) sessionOptions() []quiz.Option {
	opts := []quiz.Option{quiz.WithClock(s.now)}
	if s.newRand != nil {
		opts = append(opts, quiz.WithRand(s.newRand()))
	}
	return opts
}

func (s *QuizService) recorder() quiz.ResultRecorder {
	return recorderFunc(func(ctx context.Context, result domain.SessionResult) (string, error) {
		id, err := s.results.RecordSession(ctx, result)
		if err != nil {
			s.metrics.RecordFailed()
			s.log.Error("record session failed", zap.String("user_id", result.UserID), zap.Error(err))
			return "", err
		}
		s.metrics.SessionCompleted(result)
		if inv, ok := s.stats.(StatsInvalidator); ok {
			if err := inv.Invalidate(ctx, result.UserID); err != nil {
				s.log.Warn("stats cache invalidation failed", zap.String("user_id", result.UserID), zap.Error(err))
			}
		}
		return id, nil
	})
}

func (s *QuizService) lock(userID string) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

type recorderFunc func(ctx context.Context, result domain.SessionResult) (string, error)

func (f recorderFunc) RecordSession(ctx context.Context, result domain.SessionResult) (string, error) {
	return f(ctx, result)
}
