// Package metrics provides Prometheus instrumentation for the agent.
package metrics

import (
	"bufio"
	"errors"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts rebalance cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wedx_cycles_total",
		Help: "Rebalance cycles by outcome",
	}, []string{"outcome"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wedx_cycle_duration_seconds",
		Help:    "Wall time of a rebalance cycle",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	// DistributionDiff is the last measured drift in distribution units.
	DistributionDiff = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wedx_distribution_total_diff",
		Help: "Sum of absolute share differences between current and target portfolio",
	})

	DistributionThreshold = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wedx_distribution_threshold",
		Help: "Rebalance threshold reported by the portfolio account",
	})

	TraderScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wedx_trader_score",
		Help: "Trader score reported by the asset manager",
	})

	// TransactionsTotal counts submitted transactions by method and status.
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wedx_transactions_total",
		Help: "Submitted transactions",
	}, []string{"method", "status"})

	MarketDataLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wedx_market_data_fetch_seconds",
		Help:    "Exchange data fetch latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wedx_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wedx_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})
)

// ObserveMarketData records one exchange data fetch.
func ObserveMarketData(d time.Duration, err error) {
	MarketDataLatency.WithLabelValues(status(err)).Observe(d.Seconds())
}

// ObserveTx records one contract write.
func ObserveTx(method string, err error) {
	TransactionsTotal.WithLabelValues(method, status(err)).Inc()
}

// SetScore exports score as a float; precision loss is acceptable here.
func SetScore(score *big.Int) {
	if score == nil {
		return
	}
	f, _ := new(big.Float).SetInt(score).Float64()
	TraderScore.Set(f)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
