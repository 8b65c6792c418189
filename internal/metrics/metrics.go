package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adaptive-quiz-service/internal/domain"
)

// Metrics holds the quiz collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
	recordFailures    prometheus.Counter
	answers           *prometheus.CounterVec
	sessionScore      prometheus.Histogram
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// New registers the quiz collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Quiz sessions started or restarted",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_sessions_completed_total",
			Help: "Quiz sessions whose result was recorded",
		}),
		recordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_result_record_failures_total",
			Help: "Failed attempts to persist a session result",
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quiz_answers_total",
			Help: "Submitted answers by difficulty tier and correctness",
		}, []string{"difficulty", "correct"}),
		sessionScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_session_score",
			Help:    "Final score of completed sessions",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2},
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.sessionsStarted,
		m.sessionsCompleted,
		m.recordFailures,
		m.answers,
		m.sessionScore,
		m.requests,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsStarted.Inc()
}

func (m *Metrics) SessionCompleted(result domain.SessionResult) {
	if m == nil {
		return
	}
	m.sessionsCompleted.Inc()
	m.sessionScore.Observe(float64(result.Score))
}

func (m *Metrics) RecordFailed() {
	if m == nil {
		return
	}
	m.recordFailures.Inc()
}

func (m *Metrics) Answered(difficulty domain.Difficulty, correct bool) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(strconv.Itoa(int(difficulty)), strconv.FormatBool(correct)).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
