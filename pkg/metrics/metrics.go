// Package metrics 定义网关的 Prometheus 指标。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry 保存本服务注册的全部 collector。
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parallax",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parallax",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests (streams included).",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		},
		[]string{"method", "route"},
	)

	relayInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parallax",
			Subsystem: "relay",
			Name:      "inflight_sessions",
			Help:      "Current number of streaming chat sessions.",
		},
	)

	relaySessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parallax",
			Subsystem: "relay",
			Name:      "sessions_total",
			Help:      "Chat relay sessions by model and outcome.",
		},
		[]string{"model", "outcome"},
	)

	relayTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parallax",
			Subsystem: "relay",
			Name:      "tokens_total",
			Help:      "Tokens reported by the upstream API.",
		},
		[]string{"model", "direction"},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		relayInFlight,
		relaySessions,
		relayTokens,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// GinMiddleware 记录每个请求的状态码与耗时，route 使用路由模板避免高基数。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RelayStarted 在聊天流开始时调用，返回的函数在结束时以结果调用。
func RelayStarted(model string) func(outcome string) {
	relayInFlight.Inc()
	return func(outcome string) {
		relayInFlight.Dec()
		relaySessions.WithLabelValues(model, outcome).Inc()
	}
}

// RecordTokens 累加上游报告的 token 数。
func RecordTokens(model string, input, output int64) {
	relayTokens.WithLabelValues(model, "input").Add(float64(input))
	relayTokens.WithLabelValues(model, "output").Add(float64(output))
}
