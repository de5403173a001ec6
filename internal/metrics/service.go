// Package metrics exposes basket reconciliation activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtlprog/basket/internal/domain"
)

const namespace = "basket"

// Service records adjustments, rejections, keeper runs and unit drift.
// It is both an adjust.EventSink and an adjust.RejectionObserver.
type Service struct {
	registry *prometheus.Registry

	adjustments *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	keeperRuns  *prometheus.CounterVec
	drift       *prometheus.GaugeVec
	lastAdjust  *prometheus.GaugeVec
}

// NewService creates a Service with its own registry.
func NewService() *Service {
	s := &Service{
		registry: prometheus.NewRegistry(),
		adjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unit_adjustments_total",
			Help:      "Committed default position unit changes by basket and component.",
		}, []string{"basket", "component"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjust_rejections_total",
			Help:      "Failed adjustment calls by basket and reason code.",
		}, []string{"basket", "code"}),
		keeperRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keeper_runs_total",
			Help:      "Keeper reconciliation runs by result.",
		}, []string{"result"}),
		drift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unit_drift",
			Help:      "Calculated minus declared real unit, in whole units, as last observed.",
		}, []string{"basket", "component"}),
		lastAdjust: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_adjustment_timestamp_seconds",
			Help:      "Unix time of the last committed adjustment per basket.",
		}, []string{"basket"}),
	}
	s.registry.MustRegister(s.adjustments, s.rejections, s.keeperRuns, s.drift, s.lastAdjust)
	return s
}

// Publish counts committed events.
func (s *Service) Publish(_ context.Context, events []domain.UnitAdjusted) {
	if s == nil {
		return
	}
	for _, e := range events {
		s.adjustments.WithLabelValues(label(e.Basket), label(e.Component)).Inc()
	}
	if len(events) > 0 {
		s.lastAdjust.WithLabelValues(label(events[0].Basket)).SetToCurrentTime()
	}
}

func (s *Service) ObserveRejection(basket common.Address, err error) {
	if s == nil || err == nil {
		return
	}
	s.rejections.WithLabelValues(label(basket), domain.ErrorCode(err)).Inc()
}

// ObserveDrift sets the drift gauge for every snapshot.
func (s *Service) ObserveDrift(basket common.Address, snapshots []domain.ComponentSnapshot) {
	if s == nil {
		return
	}
	for _, snap := range snapshots {
		v := domain.UnitDecimal(snap.Drift()).InexactFloat64()
		s.drift.WithLabelValues(label(basket), label(snap.Component)).Set(v)
	}
}

// ObserveKeeperRun counts a keeper run; result is "ok" or "error".
func (s *Service) ObserveKeeperRun(err error) {
	if s == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.keeperRuns.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func label(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
