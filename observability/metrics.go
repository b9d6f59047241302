package observability

import (
	"math/big"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type rewardMetrics struct {
	recorded    prometheus.Counter
	rejected    *prometheus.CounterVec
	claimed     prometheus.Counter
	rpcRequests *prometheus.CounterVec
	locked      prometheus.Gauge
	distributed prometheus.Gauge
}

var (
	rewardMetricsOnce sync.Once
	rewardRegistry    *rewardMetrics
)

// Rewards returns the lazily-initialised metrics registry tracking ledger
// activity.
func Rewards() *rewardMetrics {
	rewardMetricsOnce.Do(func() {
		rewardRegistry = &rewardMetrics{
			recorded: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "beam",
				Subsystem: "reward",
				Name:      "recorded_total",
				Help:      "Count of grants recorded.",
			}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "beam",
				Subsystem: "reward",
				Name:      "rejected_total",
				Help:      "Count of rejected attempts segmented by reason.",
			}, []string{"reason"}),
			claimed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "beam",
				Subsystem: "reward",
				Name:      "claimed_total",
				Help:      "Count of grants settled to their claimant.",
			}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "beam",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			locked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "beam",
				Subsystem: "reward",
				Name:      "locked_units",
				Help:      "Sum of amounts locked by pending grants, in base units.",
			}),
			distributed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "beam",
				Subsystem: "reward",
				Name:      "distributed_units",
				Help:      "Sum of amounts settled to claimants, in base units.",
			}),
		}
		prometheus.MustRegister(
			rewardRegistry.recorded,
			rewardRegistry.rejected,
			rewardRegistry.claimed,
			rewardRegistry.rpcRequests,
			rewardRegistry.locked,
			rewardRegistry.distributed,
		)
	})
	return rewardRegistry
}

// RecordGrant increments the recorded counter.
func (m *rewardMetrics) RecordGrant() {
	if m == nil {
		return
	}
	m.recorded.Inc()
}

// RecordRejection increments the rejection counter for the supplied reason.
func (m *rewardMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(reason))
	if normalized == "" {
		normalized = "unknown"
	}
	m.rejected.WithLabelValues(normalized).Inc()
}

// RecordClaim increments the claim counter.
func (m *rewardMetrics) RecordClaim() {
	if m == nil {
		return
	}
	m.claimed.Inc()
}

// RecordRPC increments the JSON-RPC request counter.
func (m *rewardMetrics) RecordRPC(method, outcome string) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}

// SetAggregates publishes the running totals as gauges. Precision loss past
// float64 range is acceptable for dashboards.
func (m *rewardMetrics) SetAggregates(locked, distributed *big.Int) {
	if m == nil {
		return
	}
	if locked != nil {
		value, _ := new(big.Float).SetInt(locked).Float64()
		m.locked.Set(value)
	}
	if distributed != nil {
		value, _ := new(big.Float).SetInt(distributed).Float64()
		m.distributed.Set(value)
	}
}
