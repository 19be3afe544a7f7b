package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はサービス単位のHTTPメトリクス。
type Metrics struct {
	// registry はメトリクスの登録先。
	registry *prometheus.Registry
	// requests はハンドラとステータスごとのリクエスト数。
	requests *prometheus.CounterVec
	// latency はハンドラごとの処理時間（ミリ秒）。
	latency *prometheus.HistogramVec
}

// NewMetrics はサービス名をサブシステムとするメトリクスを生成する。
// サービスごとに独立したレジストリを使用するため、テストで複数回生成しても衝突しない。
func NewMetrics(service string) *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minishop",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "minishop",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler", "method"})

	registry.MustRegister(requests, latency)
	return &Metrics{registry: registry, requests: requests, latency: latency}
}

// Middleware はリクエスト数と処理時間を記録するGinミドルウェアを返す。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 未定義ルートでラベルが増え続けないようにする
		handler := c.FullPath()
		if handler == "" {
			handler = "unmatched"
		}
		m.requests.WithLabelValues(handler, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(handler, c.Request.Method).Observe(float64(time.Since(start).Microseconds()) / 1000)
	}
}

// Handler はPrometheus形式でメトリクスを公開するHTTPハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
