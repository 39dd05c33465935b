// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/levelup/authflow/internal/auth"
)

const namespace = "levelup_auth"

// Metrics counts flow outcomes. It implements auth.Recorder.
type Metrics struct {
	SignalsTotal         *prometheus.CounterVec
	RecoveriesTotal      *prometheus.CounterVec
	PasswordUpdatesTotal *prometheus.CounterVec
	EmailsTotal          *prometheus.CounterVec
}

var _ auth.Recorder = (*Metrics)(nil)

// NewMetrics creates and registers the flow metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_total",
				Help:      "Redirect signals classified, by kind",
			},
			[]string{"kind"},
		),
		RecoveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recoveries_total",
				Help:      "Recovery sessions resolved, by protocol and status",
			},
			[]string{"protocol", "status"},
		),
		PasswordUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "password_updates_total",
				Help:      "Password update attempts, by result",
			},
			[]string{"result"},
		),
		EmailsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_total",
				Help:      "Emails requested from the identity service, by kind and result",
			},
			[]string{"kind", "result"},
		),
	}

	reg.MustRegister(m.SignalsTotal, m.RecoveriesTotal, m.PasswordUpdatesTotal, m.EmailsTotal)
	return m
}

// RecordSignal counts a classified signal.
func (m *Metrics) RecordSignal(kind string) {
	m.SignalsTotal.WithLabelValues(kind).Inc()
}

// RecordRecovery counts a resolved recovery session.
func (m *Metrics) RecordRecovery(protocol, status string) {
	m.RecoveriesTotal.WithLabelValues(protocol, status).Inc()
}

// RecordPasswordUpdate counts a password update attempt.
func (m *Metrics) RecordPasswordUpdate(result string) {
	m.PasswordUpdatesTotal.WithLabelValues(result).Inc()
}

// RecordEmail counts an email request.
func (m *Metrics) RecordEmail(kind, result string) {
	m.EmailsTotal.WithLabelValues(kind, result).Inc()
}
