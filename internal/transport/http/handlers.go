package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"adaptive-quiz-service/internal/app"
	"adaptive-quiz-service/internal/auth"
	"adaptive-quiz-service/internal/domain"
)

const maxLeaderboardLimit = 100

// API serves the REST endpoints.
type API struct {
	service          *app.QuizService
	tokens           *auth.TokenService
	log              *zap.Logger
	leaderboardLimit int
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID string `json:"userId"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type accuracyRow struct {
	Topic   string  `json:"topic"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	userID, err := a.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{UserID: userID})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decode(w, r, &req) {
		return
	}
	userID, err := a.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		a.fail(w, err)
		return
	}
	token, err := a.tokens.Issue(userID, req.Username)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, UserID: userID})
}

func (a *API) next(w http.ResponseWriter, r *http.Request) {
	res, err := a.service.Next(r.Context(), claimsFromContext(r.Context()).Subject)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := a.service.Answer(r.Context(), claimsFromContext(r.Context()).Subject, req.Answer)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) restart(w http.ResponseWriter, r *http.Request) {
	if _, err := a.service.Restart(r.Context(), claimsFromContext(r.Context()).Subject); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) status(w http.ResponseWriter, r *http.Request) {
	st, err := a.service.Status(r.Context(), claimsFromContext(r.Context()).Subject)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	rows, err := a.service.TopicAccuracy(r.Context(), claimsFromContext(r.Context()).Subject)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]accuracyRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, accuracyRow{Topic: row.Topic, Correct: row.Correct, Total: row.Total, Percent: row.Percent()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := a.leaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorPayload{Message: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	entries, err := a.service.Leaderboard(r.Context(), limit)
	if err != nil {
		a.fail(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorPayload{Message: clientMessage(err)})
}

// clientMessage is the error text a client may see. Unmapped errors are
// reported as "internal error".
func clientMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDuplicateUsername),
		errors.Is(err, domain.ErrSessionAlreadyComplete),
		errors.Is(err, domain.ErrNoPendingQuestion):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Message: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
