// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/todosync/internal/model"
)

// MetricsCollector はメトリクス収集のインターフェース。
// トランスポート、クエリキャッシュ、CRUDオーケストレーターから利用する。
type MetricsCollector interface {
	RecordRequest(method string, statusCode int, duration time.Duration)
	RecordTransportFailure(method string)
	RecordQuerySettled(resource string, status model.QueryStatus)
	RecordCacheHit(resource string)
	RecordInvalidation(resource string)
	RecordMutation(op string, success bool)
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration)     {}
func (Nop) RecordTransportFailure(string)                {}
func (Nop) RecordQuerySettled(string, model.QueryStatus) {}
func (Nop) RecordCacheHit(string)                        {}
func (Nop) RecordInvalidation(string)                    {}
func (Nop) RecordMutation(string, bool)                  {}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requestLatency   *prometheus.HistogramVec
	httpStatus       *prometheus.CounterVec
	transportFailure *prometheus.CounterVec
	querySettled     *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	invalidations    *prometheus.CounterVec
	mutations        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todosync_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todosync_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		transportFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todosync_transport_failure_total",
			Help: "レスポンスを受け取れなかったリクエストの合計数",
		}, []string{"method"}),
		querySettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todosync_query_settled_total",
			Help: "クエリセルの取得完了数（結果別）",
		}, []string{"resource", "status"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todosync_query_cache_hits_total",
			Help: "既存セルを参照したクエリの合計数",
		}, []string{"resource"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todosync_query_invalidations_total",
			Help: "リソースごとの無効化回数",
		}, []string{"resource"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todosync_mutations_total",
			Help: "作成・更新・削除の実行数（結果別）",
		}, []string{"op", "result"}),
	}

	reg.MustRegister(
		c.requestLatency,
		c.httpStatus,
		c.transportFailure,
		c.querySettled,
		c.cacheHits,
		c.invalidations,
		c.mutations,
	)

	return c
}

// RecordRequest はレスポンスを受け取ったリクエストを記録する。
func (c *Collector) RecordRequest(method string, statusCode int, duration time.Duration) {
	c.requestLatency.WithLabelValues(method).Observe(duration.Seconds())
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTransportFailure は通信失敗を記録する。
func (c *Collector) RecordTransportFailure(method string) {
	c.transportFailure.WithLabelValues(method).Inc()
}

// RecordQuerySettled はクエリセルの確定を記録する。
func (c *Collector) RecordQuerySettled(resource string, status model.QueryStatus) {
	c.querySettled.WithLabelValues(resource, string(status)).Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(resource string) {
	c.cacheHits.WithLabelValues(resource).Inc()
}

// RecordInvalidation はリソースの無効化を記録する。
func (c *Collector) RecordInvalidation(resource string) {
	c.invalidations.WithLabelValues(resource).Inc()
}

// RecordMutation は作成・更新・削除の結果を記録する。
func (c *Collector) RecordMutation(op string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.mutations.WithLabelValues(op, result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
