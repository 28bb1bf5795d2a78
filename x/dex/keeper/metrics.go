package keeper

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DEXMetrics holds all Prometheus metrics for the DEX module
type DEXMetrics struct {
	// Swap metrics
	SwapsTotal        *prometheus.CounterVec
	SwapVolume        *prometheus.CounterVec
	SwapLatency       prometheus.Histogram
	SwapFeesCollected *prometheus.CounterVec

	// Batch metrics
	BatchesTotal         *prometheus.CounterVec
	BatchOrders          *prometheus.CounterVec
	BatchClearingPrice   *prometheus.GaugeVec
	BatchClearingLatency prometheus.Histogram

	// Liquidity metrics
	LiquidityAdded   *prometheus.CounterVec
	LiquidityRemoved *prometheus.CounterVec
	PoolReserves     *prometheus.GaugeVec
	LPTokenSupply    *prometheus.GaugeVec

	// Pool metrics
	PoolsTotal prometheus.Counter

	// Circuit breaker metrics
	CircuitBreakerTriggers *prometheus.CounterVec
	CircuitBreakerResets   *prometheus.CounterVec

	// Security metrics
	GuardRejections *prometheus.CounterVec

	// Oracle metrics
	OracleWrites      prometheus.Counter
	OracleCardinality *prometheus.GaugeVec

	ProtocolFeesCollected *prometheus.CounterVec
}

var (
	dexMetricsOnce sync.Once
	dexMetrics     *DEXMetrics
)

// NewDEXMetrics creates and registers DEX metrics (singleton pattern)
func NewDEXMetrics() *DEXMetrics {
	dexMetricsOnce.Do(func() {
		dexMetrics = &DEXMetrics{
			SwapsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "swaps_total",
					Help:      "Total number of swaps executed",
				},
				[]string{"pool_id", "token_in", "status"},
			),
			SwapVolume: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "swap_volume_total",
					Help:      "Total swap input volume in base units",
				},
				[]string{"pool_id", "token_in"},
			),
			SwapLatency: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "swap_latency_seconds",
					Help:      "Swap execution latency",
					Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
				},
			),
			SwapFeesCollected: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "swap_fees_total",
					Help:      "Swap fees charged, split into lp and protocol",
				},
				[]string{"pool_id", "denom", "kind"},
			),

			BatchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "batches_total",
					Help:      "Total number of batch clearings",
				},
				[]string{"pool_id", "status"},
			),
			BatchOrders: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "batch_orders_total",
					Help:      "Batch orders by settlement status",
				},
				[]string{"pool_id", "status"},
			),
			BatchClearingPrice: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "batch_clearing_price",
					Help:      "Last uniform clearing price per pool",
				},
				[]string{"pool_id"},
			),
			BatchClearingLatency: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "batch_clearing_latency_seconds",
					Help:      "Batch clearing latency",
					Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
				},
			),

			LiquidityAdded: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "liquidity_added_total",
					Help:      "Liquidity add operations",
				},
				[]string{"pool_id"},
			),
			LiquidityRemoved: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "liquidity_removed_total",
					Help:      "Liquidity remove operations",
				},
				[]string{"pool_id"},
			),
			PoolReserves: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "pool_reserves",
					Help:      "Current pool reserves",
				},
				[]string{"pool_id", "denom"},
			),
			LPTokenSupply: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "lp_token_supply",
					Help:      "Outstanding liquidity shares",
				},
				[]string{"pool_id"},
			),

			PoolsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "pools_created_total",
					Help:      "Total pools created",
				},
			),

			CircuitBreakerTriggers: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "circuit_breaker_triggers_total",
					Help:      "Circuit breaker trips",
				},
				[]string{"pool_id", "kind"},
			),
			CircuitBreakerResets: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "circuit_breaker_resets_total",
					Help:      "Explicit circuit breaker resets",
				},
				[]string{"pool_id", "kind"},
			),

			GuardRejections: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "guard_rejections_total",
					Help:      "Operations rejected by a defense guard",
				},
				[]string{"guard"},
			),

			OracleWrites: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "oracle_writes_total",
					Help:      "Oracle observations written",
				},
			),
			OracleCardinality: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "oracle_cardinality_next",
					Help:      "Oracle ring buffer capacity per pool",
				},
				[]string{"pool_id"},
			),

			ProtocolFeesCollected: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "paw",
					Subsystem: "dex",
					Name:      "protocol_fees_collected_total",
					Help:      "Protocol fees swept to the treasury",
				},
				[]string{"denom"},
			),
		}
	})
	return dexMetrics
}
