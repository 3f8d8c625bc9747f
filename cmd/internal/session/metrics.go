package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEstablished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seatguard_sessions_established_total",
		Help: "Login-time establish attempts by result (created, blocked).",
	}, []string{"result"})

	metricTakeovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seatguard_takeovers_total",
		Help: "Forced takeovers that evicted other devices.",
	})

	metricHeartbeats = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seatguard_heartbeats_total",
		Help: "Heartbeat validations by result (ok, rejected, error).",
	}, []string{"result"})

	metricEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seatguard_sessions_evicted_total",
		Help: "Sessions deactivated by a conflict-resolution sweep.",
	})

	metricReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "seatguard_sessions_reaped_total",
		Help: "Idle sessions deactivated by the reaper.",
	})
)
