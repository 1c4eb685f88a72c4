// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mobius Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Login outcome labels.
const (
	OutcomeSuccess         = "success"
	OutcomeBlank           = "blank"
	OutcomeUnknownUser     = "unknown_user"
	OutcomeInactive        = "inactive"
	OutcomeBadPassword     = "bad_password"
	OutcomeSuspended       = "suspended"
	OutcomeSessionConflict = "session_conflict"
	OutcomeIntegrity       = "integrity_violation"
	OutcomeError           = "error"
)

// LoginAttempts counts login attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mobius_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	},
	[]string{"outcome"},
)

// SessionOperations counts session lifecycle operations.
// Use RegisterMetrics to register this with a Prometheus registry.
var SessionOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mobius_session_operations_total",
		Help: "Total number of session operations by operation and result",
	},
	[]string{"operation", "result"},
)

// AuthorizationDenials counts rejected privileged operations.
var AuthorizationDenials = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mobius_authorization_denials_total",
		Help: "Total number of denied privileged operations by operation",
	},
	[]string{"operation"},
)

// RegisterMetrics registers auth package metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(SessionOperations)
	reg.MustRegister(AuthorizationDenials)
}

func recordLogin(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}

func recordSessionOp(operation, result string) {
	SessionOperations.WithLabelValues(operation, result).Inc()
}

func recordDenial(operation string) {
	AuthorizationDenials.WithLabelValues(operation).Inc()
}
