package engine

import (
	"errors"

	"github.com/defistate/defistate-amm-go/fullmath"
	"github.com/defistate/defistate-amm-go/pair"
	"github.com/defistate/defistate-amm-go/pool"
	"github.com/defistate/defistate-amm-go/registry"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	opCreatePool      = "create_pool"
	opAddLiquidity    = "add_liquidity"
	opRemoveLiquidity = "remove_liquidity"
	opSwap            = "swap"

	outcomeSuccess = "success"
)

// Metrics holds the Prometheus collectors of an Engine.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pools      prometheus.Gauge
	dropped    prometheus.Counter
}

// NewMetrics creates the engine collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "amm",
				Name:      "operations_total",
				Help:      "Pool operations by kind and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "amm",
				Name:      "operation_duration_seconds",
				Help:      "Time spent applying a pool operation.",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"operation"},
		),
		pools: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "amm",
			Name:      "pools",
			Help:      "Number of registered pools.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "amm",
			Name:      "events_dropped_total",
			Help:      "Events not delivered because a subscriber channel was full.",
		}),
	}
	reg.MustRegister(m.operations, m.duration, m.pools, m.dropped)
	return m
}

// outcome maps an operation error to a low-cardinality label.
func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, pool.ErrZeroInput):
		return "zero_input"
	case errors.Is(err, pair.ErrInvalidPair):
		return "invalid_pair"
	case errors.Is(err, registry.ErrPoolAlreadyExists):
		return "pool_exists"
	case errors.Is(err, ErrPoolNotFound):
		return "pool_not_found"
	case errors.Is(err, pool.ErrExcessiveSlippage):
		return "slippage"
	case errors.Is(err, pool.ErrNoLiquidity):
		return "no_liquidity"
	case errors.Is(err, pool.ErrInvalidFee):
		return "invalid_fee"
	case errors.Is(err, fullmath.ErrArithmeticOverflow):
		return "overflow"
	case errors.Is(err, fullmath.ErrArithmeticUnderflow):
		return "underflow"
	case errors.Is(err, fullmath.ErrDivisionByZero):
		return "division_by_zero"
	default:
		return "error"
	}
}
