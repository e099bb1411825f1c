package main

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	authEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_auth_events_total",
			Help: "Register, login and logout attempts by outcome",
		},
		[]string{"event", "outcome"},
	)

	postOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_post_operations_total",
			Help: "Post create, update and delete attempts by outcome",
		},
		[]string{"operation", "outcome"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blog_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// outcome maps an operation error onto a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrDuplicateEmail):
		return "duplicate"
	case errors.Is(err, ErrInvalidCredentials):
		return "denied"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
