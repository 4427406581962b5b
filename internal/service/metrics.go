package service

import "github.com/prometheus/client_golang/prometheus"

var (
	authEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "posto_auth_events_total", Help: "Auth workflow events by outcome"},
		[]string{"event"},
	)
	auditWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "posto_audit_write_failures_total", Help: "Audit entries that could not be written"},
	)
)

func init() { prometheus.MustRegister(authEvents, auditWriteFailures) }
