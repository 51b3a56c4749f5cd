package observability

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"crucible/native/exchange"
)

type exchangeMetrics struct {
	swaps    *prometheus.CounterVec
	quotes   *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	exchangeMetricsOnce sync.Once
	exchangeRegistry    *exchangeMetrics
)

// ExchangeMetrics returns the lazily-initialised registry tracking engine
// activity.
func ExchangeMetrics() *exchangeMetrics {
	exchangeMetricsOnce.Do(func() {
		exchangeRegistry = &exchangeMetrics{
			swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crucible",
				Subsystem: "exchange",
				Name:      "swaps_total",
				Help:      "Settled swaps segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crucible",
				Subsystem: "exchange",
				Name:      "quotes_total",
				Help:      "Quote requests segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "crucible",
				Subsystem: "exchange",
				Name:      "failures_total",
				Help:      "Failed operations segmented by kind and error class.",
			}, []string{"kind", "error"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "crucible",
				Subsystem: "exchange",
				Name:      "operation_duration_seconds",
				Help:      "Engine operation latency segmented by kind.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			exchangeRegistry.swaps,
			exchangeRegistry.quotes,
			exchangeRegistry.failures,
			exchangeRegistry.latency,
		)
	})
	return exchangeRegistry
}

// RecordSwap tracks one settlement attempt with its duration.
func (m *exchangeMetrics) RecordSwap(kind string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	kind = normaliseKind(kind)
	m.swaps.WithLabelValues(kind, outcome(err)).Inc()
	m.latency.WithLabelValues(kind).Observe(duration.Seconds())
	if err != nil {
		m.failures.WithLabelValues(kind, ErrorClass(err)).Inc()
	}
}

// RecordQuote tracks one quote request.
func (m *exchangeMetrics) RecordQuote(kind string, err error) {
	if m == nil {
		return
	}
	kind = normaliseKind(kind)
	m.quotes.WithLabelValues(kind, outcome(err)).Inc()
	if err != nil {
		m.failures.WithLabelValues(kind, ErrorClass(err)).Inc()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func normaliseKind(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if kind == "" {
		return "unknown"
	}
	return kind
}

// ErrorClass maps an engine error onto a low-cardinality metric label.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, exchange.ErrInvalidTokens):
		return "invalid_tokens"
	case errors.Is(err, exchange.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, exchange.ErrPaused):
		return "paused"
	case errors.Is(err, exchange.ErrDeadlineExceeded):
		return "deadline"
	case errors.Is(err, exchange.ErrTooSmallAmountOut):
		return "slippage_out"
	case errors.Is(err, exchange.ErrTooBigAmountIn):
		return "slippage_in"
	case errors.Is(err, exchange.ErrNotWhitelisted):
		return "not_whitelisted"
	case errors.Is(err, exchange.ErrInsufficientReserves):
		return "insufficient_reserves"
	case errors.Is(err, exchange.ErrInvalidCurve):
		return "invalid_curve"
	case errors.Is(err, exchange.ErrUnknownCollateral):
		return "unknown_collateral"
	default:
		return "internal"
	}
}
