// Package metrics holds the Prometheus collectors of the Assessment API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "assessment"

// Metrics groups every collector the server exports.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	AnswersSaved     prometheus.Counter
	AnswersPersisted *prometheus.CounterVec
	Submissions      *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New builds the collectors and registers them on reg. A nil reg leaves them
// unregistered, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions whose start time was recorded.",
		}),
		AnswersSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_saved_total",
			Help:      "Autosaved answers accepted by the API.",
		}),
		AnswersPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_persisted_total",
			Help:      "Autosaved answers handled by the persistence worker.",
		}, []string{"result"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission requests by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.SessionsStarted,
			m.AnswersSaved,
			m.AnswersPersisted,
			m.Submissions,
			m.HTTPRequests,
			m.HTTPDuration,
		)
	}
	return m
}
