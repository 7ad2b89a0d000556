// Package metrics exposes service counters to Prometheus.
//
// Outcomes separate legitimate auth rejections from store failures,
// so alerts can fire on the latter only.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nkiryanov/accounts/internal/apperrors"
)

const namespace = "accounts"

const (
	OutcomeOK               = "ok"
	OutcomeRejected         = "rejected"
	OutcomeStoreUnavailable = "store_unavailable"
	OutcomeTimeout          = "timeout"
	OutcomeError            = "error"
)

var rejections = []error{
	apperrors.ErrInvalidCredentials,
	apperrors.ErrDuplicateAccount,
	apperrors.ErrMissingToken,
	apperrors.ErrInvalidToken,
	apperrors.ErrExpiredToken,
	apperrors.ErrTokenBindingMismatch,
	apperrors.ErrRequireLogin,
	apperrors.ErrAuthorizationFailed,
	apperrors.ErrAccountNotFound,
}

// Outcome classifies err into a label value
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, apperrors.ErrStoreUnavailable) {
		return OutcomeStoreUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	for _, r := range rejections {
		if errors.Is(err, r) {
			return OutcomeRejected
		}
	}
	return OutcomeError
}

type Metrics struct {
	registry *prometheus.Registry

	auth   *prometheus.CounterVec
	events *prometheus.CounterVec
	swept  prometheus.Counter
}

// New registers collectors in own registry, so tests may create as many as they want
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		auth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Auth operations by outcome.",
		}, []string{"operation", "outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Published events by topic and outcome.",
		}, []string{"topic", "outcome"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Expired sessions removed by sweeper.",
		}),
	}

	m.registry.MustRegister(
		m.auth,
		m.events,
		m.swept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Observer adapts a function to Observe(label, err) interfaces of services
type Observer func(label string, err error)

func (f Observer) Observe(label string, err error) { f(label, err) }

// Auth observes auth service operations
func (m *Metrics) Auth() Observer {
	return func(operation string, err error) {
		m.auth.WithLabelValues(operation, Outcome(err)).Inc()
	}
}

// Events observes event publishing
func (m *Metrics) Events() Observer {
	return func(topic string, err error) {
		m.events.WithLabelValues(topic, Outcome(err)).Inc()
	}
}

func (m *Metrics) SessionsSwept(n int64) {
	m.swept.Add(float64(n))
}

// Handler serves metrics in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
