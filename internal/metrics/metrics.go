// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイクライアント、ハンドラー、ミドルウェアから利用する。
type MetricsCollector interface {
	RecordUpstreamRequest(endpoint string, statusCode int, duration time.Duration)
	RecordUpstreamFailure(endpoint string, reason string)
	RecordBreakerState(name string, state string)
	RecordTokenRefresh(outcome string)
	RecordRouteDecision(decision string)
	RecordHTTPStatus(statusCode int)
}

// トークンリフレッシュの結果ラベル
const (
	RefreshOutcomeSuccess  = "success"
	RefreshOutcomeMissing  = "missing"
	RefreshOutcomeRejected = "rejected"
	RefreshOutcomeError    = "error"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec
	tokenRefresh     *prometheus.CounterVec
	routeDecisions   *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_upstream_requests_total",
			Help: "上流ゲートウェイへのリクエスト数（エンドポイント・ステータス別）",
		}, []string{"endpoint", "status_code"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_upstream_failures_total",
			Help: "上流ゲートウェイへの通信失敗数（ステータスを得られなかったもの）",
		}, []string{"endpoint", "reason"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_upstream_latency_seconds",
			Help:    "上流ゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storefront_circuit_breaker_open",
			Help: "サーキットブレーカーの状態（1: open, 0.5: half-open, 0: closed）",
		}, []string{"name"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_token_refresh_total",
			Help: "トークンリフレッシュの試行数（結果別）",
		}, []string{"outcome"}),
		routeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_route_guard_decisions_total",
			Help: "ルートガードの判定数（結果別）",
		}, []string{"decision"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamFailures,
		c.upstreamLatency,
		c.breakerState,
		c.tokenRefresh,
		c.routeDecisions,
		c.httpStatus,
	)

	return c
}

// RecordUpstreamRequest は上流呼び出しのステータスとレイテンシを記録する。
func (c *Collector) RecordUpstreamRequest(endpoint string, statusCode int, duration time.Duration) {
	c.upstreamRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordUpstreamFailure は上流呼び出しの通信失敗を記録する。
func (c *Collector) RecordUpstreamFailure(endpoint string, reason string) {
	c.upstreamFailures.WithLabelValues(endpoint, reason).Inc()
}

// RecordBreakerState はサーキットブレーカーの状態遷移を記録する。
func (c *Collector) RecordBreakerState(name string, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 0.5
	}
	c.breakerState.WithLabelValues(name).Set(v)
}

// RecordTokenRefresh はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordTokenRefresh(outcome string) {
	c.tokenRefresh.WithLabelValues(outcome).Inc()
}

// RecordRouteDecision はルートガードの判定を記録する。
func (c *Collector) RecordRouteDecision(decision string) {
	c.routeDecisions.WithLabelValues(decision).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordUpstreamRequest(string, int, time.Duration) {}
func (Nop) RecordUpstreamFailure(string, string)             {}
func (Nop) RecordBreakerState(string, string)                {}
func (Nop) RecordTokenRefresh(string)                        {}
func (Nop) RecordRouteDecision(string)                       {}
func (Nop) RecordHTTPStatus(int)                             {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントのみを提供するHTTPハンドラーを返す。
// メインのルーターとは別ポートで公開する場合に使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
