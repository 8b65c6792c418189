package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/bank"
	"adaptive-quiz-service/internal/domain"
	"adaptive-quiz-service/internal/infra/memory"
	"adaptive-quiz-service/internal/metrics"
	"adaptive-quiz-service/internal/quiz"
)

type firstRand struct{}

func (firstRand) Intn(int) int { return 0 }

type testServer struct {
	*httptest.Server
	tokens *auth.TokenService
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	return newTestServerWithSessions(t, cfg, memory.NewSessionStore())
}

func newTestServerWithSessions(t *testing.T, cfg RouterConfig, sessions app.SessionRepository) *testServer {
	t.Helper()
	b, err := bank.Load(context.Background(), memory.NewStaticQuestionSource([]domain.Question{
		{ID: "Q1", Prompt: "First", Options: []string{"A", "B"}, Answer: "A", Topic: "basics", Difficulty: 1},
		{ID: "Q2", Prompt: "Second", Options: []string{"A", "B"}, Answer: "B", Topic: "loops", Difficulty: 2},
	}))
	if err != nil {
		t.Fatalf("bank: %v", err)
	}
	store := memory.NewStore(bcrypt.MinCost)
	m := metrics.New()
	service := app.NewQuizService(b, store, store, sessions,
		app.WithMetrics(m),
		app.WithRandSource(func() quiz.Rand { return firstRand{} }))
	tokens := auth.NewTokenService("test-secret", time.Hour)
	srv := httptest.NewServer(NewRouter(service, tokens, m, nil, cfg))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "pw"}
	if resp, body := s.do(t, http.MethodPost, "/api/register", "", creds); resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: %d %s", resp.StatusCode, body)
	}
	resp, body := s.do(t, http.MethodPost, "/api/login", "", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: %d %s", resp.StatusCode, body)
	}
	var out loginResponse
	if err := json.Unmarshal(body, &out); err != nil || out.Token == "" || out.UserID == "" {
		t.Fatalf("login response %s: %v", body, err)
	}
	return out.Token
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	srv.login(t, "alice")

	creds := map[string]string{"username": "alice", "password": "pw"}
	if resp, _ := srv.do(t, http.MethodPost, "/api/register", "", creds); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.StatusCode)
	}
	creds["password"] = "wrong"
	if resp, _ := srv.do(t, http.MethodPost, "/api/login", "", creds); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", resp.StatusCode)
	}
}

func TestSessionEndpointsRequireToken(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	if resp, _ := srv.do(t, http.MethodPost, "/api/session/next", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp, _ := srv.do(t, http.MethodGet, "/api/session", "garbage", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
}

func TestSessionFlowOverREST(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	token := srv.login(t, "alice")

	if resp, _ := srv.do(t, http.MethodPost, "/api/session/answer", token, answerRequest{Answer: "A"}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("answer before next: expected 409, got %d", resp.StatusCode)
	}

	resp, body := srv.do(t, http.MethodPost, "/api/session/next", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("next: %d %s", resp.StatusCode, body)
	}
	if strings.Contains(string(body), `"answer"`) {
		t.Fatalf("question payload leaks the answer: %s", body)
	}
	var next app.NextResult
	_ = json.Unmarshal(body, &next)
	if next.Question == nil || next.Question.ID != "Q1" {
		t.Fatalf("expected Q1, got %s", body)
	}

	resp, body = srv.do(t, http.MethodPost, "/api/session/answer", token, answerRequest{Answer: "A"})
	var outcome app.AnswerOutcome
	_ = json.Unmarshal(body, &outcome)
	if resp.StatusCode != http.StatusOK || !outcome.Correct || outcome.Score != 1 {
		t.Fatalf("answer: %d %s", resp.StatusCode, body)
	}

	_, body = srv.do(t, http.MethodPost, "/api/session/next", token, nil)
	next = app.NextResult{}
	_ = json.Unmarshal(body, &next)
	if next.Question == nil || next.Question.ID != "Q2" {
		t.Fatalf("expected Q2 after a correct answer, got %s", body)
	}
	srv.do(t, http.MethodPost, "/api/session/answer", token, answerRequest{Answer: "A"})

	// Missed a tier-2 question: tier 1 is exhausted, so the session ends.
	_, body = srv.do(t, http.MethodPost, "/api/session/next", token, nil)
	next = app.NextResult{}
	_ = json.Unmarshal(body, &next)
	if !next.Completed || next.Result == nil || next.Result.Score != 1 || next.Result.Total != 2 {
		t.Fatalf("expected completion with score 1/2, got %s", body)
	}
	if resp, _ := srv.do(t, http.MethodPost, "/api/session/next", token, nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("next after completion: expected 409, got %d", resp.StatusCode)
	}

	resp, body = srv.do(t, http.MethodGet, "/api/stats", token, nil)
	var rows []accuracyRow
	if err := json.Unmarshal(body, &rows); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: %d %s", resp.StatusCode, body)
	}
	if len(rows) != 2 || rows[0].Topic != "basics" || rows[0].Percent != 100 || rows[1].Percent != 0 {
		t.Fatalf("unexpected accuracy rows: %+v", rows)
	}

	_, body = srv.do(t, http.MethodGet, "/api/leaderboard?limit=500", "", nil)
	var board []domain.LeaderboardEntry
	if err := json.Unmarshal(body, &board); err != nil || len(board) != 1 || board[0].Username != "alice" || board[0].MaxScore != 1 {
		t.Fatalf("leaderboard: %s", body)
	}

	if resp, _ := srv.do(t, http.MethodPost, "/api/session/restart", token, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("restart: expected 204, got %d", resp.StatusCode)
	}
	_, body = srv.do(t, http.MethodGet, "/api/session", token, nil)
	var st app.Status
	_ = json.Unmarshal(body, &st)
	if st.State != quiz.StateInProgress.String() || st.Score != 0 || len(st.History) != 0 {
		t.Fatalf("expected fresh session after restart, got %s", body)
	}
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	if resp, _ := srv.do(t, http.MethodGet, "/api/leaderboard?limit=abc", "", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/register", strings.NewReader("{not json"))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", resp.StatusCode)
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	srv := newTestServer(t, RouterConfig{RateRequests: 2, RateWindow: time.Hour})
	creds := map[string]string{"username": "bob", "password": "pw"}
	var last int
	for i := 0; i < 3; i++ {
		resp, _ := srv.do(t, http.MethodPost, "/api/login", "", creds)
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the third attempt, got %d", last)
	}
	if resp, _ := srv.do(t, http.MethodGet, "/api/leaderboard", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard should not be limited, got %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, RouterConfig{})
	if resp, body := srv.do(t, http.MethodGet, "/healthz", "", nil); resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %s", resp.StatusCode, body)
	}
	resp, body := srv.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `route="/healthz"`) {
		t.Fatalf("expected request metrics for /healthz, got:\n%s", body)
	}
}

type brokenSessions struct{ app.SessionRepository }

func (brokenSessions) Get(context.Context, string) (quiz.Snapshot, bool, error) {
	return quiz.Snapshot{}, false, errors.New("dial tcp 10.0.0.7:6379: connection refused")
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	srv := newTestServerWithSessions(t, RouterConfig{}, brokenSessions{memory.NewSessionStore()})
	token := srv.login(t, "alice")

	resp, body := srv.do(t, http.MethodPost, "/api/session/next", token, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "10.0.0.7") || !strings.Contains(string(body), "internal error") {
		t.Fatalf("internal detail leaked: %s", body)
	}
}
