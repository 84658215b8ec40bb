package telegram

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics
var (
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_auth_attempts_total",
			Help: "Telegram login attempts by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)

	sessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_auth_sessions_created_total",
			Help: "Deep-link login sessions created",
		},
	)

	sessionsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_auth_sessions_completed_total",
			Help: "Deep-link completion attempts by result",
		},
		[]string{"result"},
	)

	sessionsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_auth_sessions_swept_total",
			Help: "Expired deep-link sessions removed by the sweeper",
		},
	)
)

// Transport labels for RecordAttempt.
const (
	TransportWidget   = "widget"
	TransportMiniApp  = "miniapp"
	TransportDeepLink = "deeplink"
)

// RecordAttempt counts a login attempt. outcome is a short label such as
// "success", "expired" or "invalid_signature".
func RecordAttempt(transport, outcome string) {
	authAttemptsTotal.WithLabelValues(transport, outcome).Inc()
}

// Outcome maps a verification error to its metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrSignatureInvalid):
		return "invalid_signature"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	default:
		return "error"
	}
}
