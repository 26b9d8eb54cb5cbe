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
	RecordHTTPRequest(statusCode int, duration time.Duration)
	RecordAuthVerification(source, result string)
	RecordBlogStatusTransition(status string)
	RecordBlogLike(liked bool)
	RecordCommentCreated()
	RecordNotificationCreated(notificationType string)
	RecordScheduledPublished(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests       *prometheus.CounterVec
	httpDuration       prometheus.Histogram
	authVerifications  *prometheus.CounterVec
	statusTransitions  *prometheus.CounterVec
	blogLikes          *prometheus.CounterVec
	commentsCreated    prometheus.Counter
	notifications      *prometheus.CounterVec
	scheduledPublished prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogflow_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogflow_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogflow_auth_verifications_total",
			Help: "検証経路と結果別のトークン検証数",
		}, []string{"source", "result"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogflow_blog_status_transitions_total",
			Help: "遷移先ステータス別のブログステータス変更数",
		}, []string{"status"}),
		blogLikes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogflow_blog_likes_total",
			Help: "いいねの付け外し数",
		}, []string{"action"}),
		commentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogflow_comments_created_total",
			Help: "作成されたコメントの合計数",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogflow_notifications_created_total",
			Help: "種別ごとの作成通知数",
		}, []string{"type"}),
		scheduledPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogflow_scheduled_published_total",
			Help: "予約公開されたブログの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.authVerifications,
		c.statusTransitions,
		c.blogLikes,
		c.commentsCreated,
		c.notifications,
		c.scheduledPublished,
	)

	return c
}

// RecordHTTPRequest はHTTPレスポンスのステータスと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// RecordAuthVerification はトークン検証の試行を記録する。
// resultは "success" または "failure"。
func (c *Collector) RecordAuthVerification(source, result string) {
	c.authVerifications.WithLabelValues(source, result).Inc()
}

// RecordBlogStatusTransition はブログのステータス変更を記録する。
func (c *Collector) RecordBlogStatusTransition(status string) {
	c.statusTransitions.WithLabelValues(status).Inc()
}

// RecordBlogLike はいいねの付け外しを記録する。
func (c *Collector) RecordBlogLike(liked bool) {
	action := "unlike"
	if liked {
		action = "like"
	}
	c.blogLikes.WithLabelValues(action).Inc()
}

// RecordCommentCreated はコメント作成を記録する。
func (c *Collector) RecordCommentCreated() {
	c.commentsCreated.Inc()
}

// RecordNotificationCreated は通知作成を記録する。
func (c *Collector) RecordNotificationCreated(notificationType string) {
	c.notifications.WithLabelValues(notificationType).Inc()
}

// RecordScheduledPublished は予約公開の件数を記録する。
func (c *Collector) RecordScheduledPublished(count int) {
	c.scheduledPublished.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカープロセスが単独でメトリクスを公開する場合に使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordHTTPRequest(int, time.Duration)  {}
func (Nop) RecordAuthVerification(string, string) {}
func (Nop) RecordBlogStatusTransition(string)     {}
func (Nop) RecordBlogLike(bool)                   {}
func (Nop) RecordCommentCreated()                 {}
func (Nop) RecordNotificationCreated(string)      {}
func (Nop) RecordScheduledPublished(int)          {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
