// Package metrics 定义 playrec 的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry 是 playrec 指标所在的注册表，由宿主进程决定是否暴露。
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// 跳过原因
const (
	ReasonParse         = "parse_error"
	ReasonDimension     = "dimension_mismatch"
	ReasonNoFeatureData = "no_feature_data"
	ReasonExcluded      = "excluded"
)

// 结果
const (
	OutcomeOK               = "ok"
	OutcomeNoRecommendation = "no_recommendation"
	OutcomeError            = "error"
)

var (
	RowsSkipped = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playrec_rows_skipped_total",
			Help: "Rows or candidates skipped during set building, by reason",
		},
		[]string{"reason"},
	)

	Requests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playrec_requests_total",
			Help: "Recommendation requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playrec_request_duration_seconds",
			Help:    "Duration of a single recommendation request",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	BatchUsers = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playrec_batch_users_total",
			Help: "Users processed by batch runs, by outcome",
		},
		[]string{"outcome"},
	)

	BreakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playrec_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordSkip 记录被跳过的行。
func RecordSkip(reason string, n int) {
	if n <= 0 {
		return
	}
	RowsSkipped.WithLabelValues(reason).Add(float64(n))
}

// RecordRequest 记录一次推荐请求。
func RecordRequest(mode, outcome string, d time.Duration) {
	Requests.WithLabelValues(mode, outcome).Inc()
	RequestDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordBatchUser 记录批处理中一个用户的结果。
func RecordBatchUser(outcome string) {
	BatchUsers.WithLabelValues(outcome).Inc()
}

// SetBreakerState 更新熔断器状态。
func SetBreakerState(name string, state float64) {
	BreakerState.WithLabelValues(name).Set(state)
}
