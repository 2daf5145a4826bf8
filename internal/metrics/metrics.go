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
// サービス層とキャッシュ層から利用する。
type MetricsCollector interface {
	RecordGenerationSuccess(kind string)
	RecordGenerationFailure(kind string)
	RecordGenerationLatency(kind string, duration time.Duration)
	RecordTitlesParsed(count int)
	RecordCacheHit()
	RecordCacheMiss()
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generationSuccess *prometheus.CounterVec
	generationFail    *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	titlesParsed      prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
// kindラベルは"title"または"post"で、生成の種類を区別する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generationSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogforge_generation_success_total",
			Help: "LLM生成成功の合計数",
		}, []string{"kind"}),
		generationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogforge_generation_fail_total",
			Help: "LLM生成失敗の合計数",
		}, []string{"kind"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blogforge_generation_latency_seconds",
			Help:    "LLM生成のレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"kind"}),
		titlesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogforge_titles_parsed_total",
			Help: "LLM応答からパースされたタイトルの合計数",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogforge_page_cache_hits_total",
			Help: "記事一覧ページキャッシュのヒット数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogforge_page_cache_misses_total",
			Help: "記事一覧ページキャッシュのミス数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogforge_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.generationSuccess,
		c.generationFail,
		c.generationLatency,
		c.titlesParsed,
		c.cacheHits,
		c.cacheMisses,
		c.httpStatus,
	)

	return c
}

// RecordGenerationSuccess はLLM生成成功を記録する。
func (c *Collector) RecordGenerationSuccess(kind string) {
	c.generationSuccess.WithLabelValues(kind).Inc()
}

// RecordGenerationFailure はLLM生成失敗を記録する。
func (c *Collector) RecordGenerationFailure(kind string) {
	c.generationFail.WithLabelValues(kind).Inc()
}

// RecordGenerationLatency はLLM生成のレイテンシを記録する。
func (c *Collector) RecordGenerationLatency(kind string, duration time.Duration) {
	c.generationLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordTitlesParsed はパースされたタイトル数を記録する。
func (c *Collector) RecordTitlesParsed(count int) {
	c.titlesParsed.Add(float64(count))
}

// RecordCacheHit はページキャッシュのヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はページキャッシュのミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
