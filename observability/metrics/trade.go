package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type TradeMetrics struct {
	stateTransitions *prometheus.CounterVec
	settlements      *prometheus.CounterVec
	burnsCompleted   *prometheus.CounterVec
	effectFailures   *prometheus.CounterVec
	rpcRequests      *prometheus.CounterVec
}

var (
	tradeOnce     sync.Once
	tradeRegistry *TradeMetrics
)

func Trade() *TradeMetrics {
	tradeOnce.Do(func() {
		tradeRegistry = &TradeMetrics{
			stateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trade_state_transitions_total",
				Help: "Count of trade state transitions by target state.",
			}, []string{"state"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trade_settlements_total",
				Help: "Count of arbitrator settlements by outcome.",
			}, []string{"outcome"}),
			burnsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trade_burns_completed_total",
				Help: "Count of completed fee burns by source denom.",
			}, []string{"denom"}),
			effectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trade_effect_failures_total",
				Help: "Count of failed collaborator notifications by collaborator.",
			}, []string{"collaborator"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "trade_rpc_requests_total",
				Help: "Count of RPC requests by method and outcome.",
			}, []string{"method", "outcome"}),
		}
		prometheus.MustRegister(
			tradeRegistry.stateTransitions,
			tradeRegistry.settlements,
			tradeRegistry.burnsCompleted,
			tradeRegistry.effectFailures,
			tradeRegistry.rpcRequests,
		)
	})
	return tradeRegistry
}

func (m *TradeMetrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	if state == "" {
		state = "unknown"
	}
	m.stateTransitions.WithLabelValues(state).Inc()
}

func (m *TradeMetrics) ObserveSettlement(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

func (m *TradeMetrics) ObserveBurnCompleted(denom string) {
	if m == nil {
		return
	}
	if denom == "" {
		denom = "unknown"
	}
	m.burnsCompleted.WithLabelValues(denom).Inc()
}

func (m *TradeMetrics) IncEffectFailure(collaborator string) {
	if m == nil {
		return
	}
	if collaborator == "" {
		collaborator = "unknown"
	}
	m.effectFailures.WithLabelValues(collaborator).Inc()
}

func (m *TradeMetrics) ObserveRPCRequest(method, outcome string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}
