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
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordLogin(success bool)
	RecordSessionExpired(source string)
	RecordSessionsCleaned(count int64)
	RecordOptimisticOutcome(outcome string)
	ObserveStoreOperation(op, kind string, err error, elapsed time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	logins          *prometheus.CounterVec
	sessionsExpired *prometheus.CounterVec
	sessionsCleaned prometheus.Counter
	optimistic      *prometheus.CounterVec
	storeOperations *prometheus.CounterVec
	storeOpLatency  *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mypt_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mypt_logins_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		sessionsExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mypt_sessions_expired_total",
			Help: "無操作タイムアウトで失効したセッション数",
		}, []string{"source"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mypt_sessions_cleaned_total",
			Help: "クリーンアップジョブで削除されたセッション数",
		}),
		optimistic: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mypt_optimistic_outcomes_total",
			Help: "楽観的更新の結果別合計数",
		}, []string{"outcome"}),
		storeOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mypt_store_operations_total",
			Help: "ドキュメントストア操作の合計数",
		}, []string{"op", "kind", "result"}),
		storeOpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mypt_store_operation_duration_seconds",
			Help:    "ドキュメントストア操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.logins,
		c.sessionsExpired,
		c.sessionsCleaned,
		c.optimistic,
		c.storeOperations,
		c.storeOpLatency,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordSessionExpired はセッション失効を記録する。sourceは"server"または"client"。
func (c *Collector) RecordSessionExpired(source string) {
	c.sessionsExpired.WithLabelValues(source).Inc()
}

// RecordSessionsCleaned はクリーンアップで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// RecordOptimisticOutcome は楽観的更新の結果を記録する。
func (c *Collector) RecordOptimisticOutcome(outcome string) {
	c.optimistic.WithLabelValues(outcome).Inc()
}

// ObserveStoreOperation はドキュメントストア操作の結果とレイテンシを記録する。
func (c *Collector) ObserveStoreOperation(op, kind string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.storeOperations.WithLabelValues(op, kind, result).Inc()
	c.storeOpLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
