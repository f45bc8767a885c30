// Package observability exposes the engine's Prometheus metrics and serves
// them over HTTP.
package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_moderation_decisions_total",
		Help: "Moderation verdicts issued, by resulting action.",
	}, []string{"action"})

	ChallengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_challenges_issued_total",
		Help: "Admission challenges sent to new members.",
	})

	ChallengesSolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_challenges_solved_total",
		Help: "Admission challenges answered correctly in time.",
	})

	ChallengesExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_challenges_expired_total",
		Help: "Admission challenges that timed out.",
	})

	AuditEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_audit_entries_total",
		Help: "Actions appended to the moderation audit log.",
	})
)

// MetricsServer serves /metrics. Implements the lifecycle Component contract.
type MetricsServer struct {
	server *http.Server

	logger *log.Entry
}

func NewMetricsServer(addr string) *MetricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &MetricsServer{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: log.WithField("object", "metricsServer"),
	}
}

func (m *MetricsServer) Start(context.Context) error {
	go func() {
		m.logger.WithField("addr", m.server.Addr).Info("serving metrics")
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.WithField("error", err.Error()).Error("metrics server stopped")
		}
	}()
	return nil
}

func (m *MetricsServer) Stop(ctx context.Context) error {
	return m.server.Shutdown(ctx)
}
