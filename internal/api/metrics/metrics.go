// Package metrics defines and registers the custom Prometheus metrics of the
// auth service. It is the single source of truth for metric names, labels,
// and help strings. HTTP request metrics come from echoprometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// Result label values shared by the counters below.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "success" or a short failure reason (e.g. "invalid_credentials")
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RefreshesTotal counts refresh token exchanges.
// Label:
//   - result: "success", "expired", "denied" or "failure"
var RefreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Total number of refresh token exchanges, by result.",
	},
	[]string{"result"},
)

// AuthorizationDecisionsTotal counts authorization checks.
// Labels:
//   - operation: the operation name checked (e.g. "UPDATE_PASSWORD")
//   - decision: "allow", "deny" or "error"
var AuthorizationDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_decisions_total",
		Help:      "Total number of authorization decisions, by operation and decision.",
	},
	[]string{"operation", "decision"},
)

// TokenEventsTotal counts lifecycle events of verification and reset tokens.
// Labels:
//   - kind: "email_verification" or "password_reset"
//   - event: "issued", "reissued", "confirmed", "claimed" or "rejected"
var TokenEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_events_total",
		Help:      "Total number of verification and reset token events.",
	},
	[]string{"kind", "event"},
)
