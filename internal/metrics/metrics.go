// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 通知トピック操作の種別。
const (
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordTopicTokens(op string, success, failure int)
	RecordTopicError(op string)
	RecordNotificationSent(kind string)
	RecordNotificationFailure(kind string)
	RecordShareCodeRedeem(result string)
	RecordHTTPStatus(statusCode int)
	RecordReminderScan(duration time.Duration, due, sent int)
	RecordExpiredCodesDeleted(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	topicTokens       *prometheus.CounterVec
	topicErrors       *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	notificationsFail *prometheus.CounterVec
	shareCodeRedeems  *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	reminderLatency   prometheus.Histogram
	remindersDue      prometheus.Counter
	remindersSent     prometheus.Counter
	expiredCodes      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		topicTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bptogether_topic_tokens_total",
			Help: "トピック購読操作の対象トークン数（操作・結果別）",
		}, []string{"op", "result"}),
		topicErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bptogether_topic_errors_total",
			Help: "トピック購読操作自体の失敗数",
		}, []string{"op"}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bptogether_notifications_sent_total",
			Help: "送信に成功したプッシュ通知の数",
		}, []string{"kind"}),
		notificationsFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bptogether_notifications_failed_total",
			Help: "送信に失敗したプッシュ通知の数",
		}, []string{"kind"}),
		shareCodeRedeems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bptogether_share_code_redeems_total",
			Help: "共有コード引き換えの結果別の件数",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bptogether_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		reminderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bptogether_reminder_scan_seconds",
			Help:    "リマインダースキャン1回あたりの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		remindersDue: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bptogether_reminders_due_total",
			Help: "リマインダー時刻に一致したユーザー数",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bptogether_reminders_sent_total",
			Help: "目標未達で送信したリマインダー数",
		}),
		expiredCodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bptogether_expired_share_codes_deleted_total",
			Help: "削除された期限切れ共有コードの数",
		}),
	}

	reg.MustRegister(
		c.topicTokens,
		c.topicErrors,
		c.notificationsSent,
		c.notificationsFail,
		c.shareCodeRedeems,
		c.httpStatus,
		c.reminderLatency,
		c.remindersDue,
		c.remindersSent,
		c.expiredCodes,
	)

	return c
}

// RecordTopicTokens はトピック購読操作の成功・失敗トークン数を記録する。
func (c *Collector) RecordTopicTokens(op string, success, failure int) {
	c.topicTokens.WithLabelValues(op, "success").Add(float64(success))
	c.topicTokens.WithLabelValues(op, "failure").Add(float64(failure))
}

// RecordTopicError はトピック購読操作自体の失敗を記録する。
func (c *Collector) RecordTopicError(op string) {
	c.topicErrors.WithLabelValues(op).Inc()
}

// RecordNotificationSent は通知送信の成功を記録する。
func (c *Collector) RecordNotificationSent(kind string) {
	c.notificationsSent.WithLabelValues(kind).Inc()
}

// RecordNotificationFailure は通知送信の失敗を記録する。
func (c *Collector) RecordNotificationFailure(kind string) {
	c.notificationsFail.WithLabelValues(kind).Inc()
}

// RecordShareCodeRedeem は共有コード引き換えの結果を記録する。
// resultは"success"またはエラーコード。
func (c *Collector) RecordShareCodeRedeem(result string) {
	c.shareCodeRedeems.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordReminderScan はリマインダースキャンの所要時間と件数を記録する。
func (c *Collector) RecordReminderScan(duration time.Duration, due, sent int) {
	c.reminderLatency.Observe(duration.Seconds())
	c.remindersDue.Add(float64(due))
	c.remindersSent.Add(float64(sent))
}

// RecordExpiredCodesDeleted は削除された期限切れ共有コードの数を記録する。
func (c *Collector) RecordExpiredCodesDeleted(count int64) {
	c.expiredCodes.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordTopicTokens(string, int, int) {}
func (Nop) RecordTopicError(string) {}
func (Nop) RecordNotificationSent(string) {}
func (Nop) RecordNotificationFailure(string) {}
func (Nop) RecordShareCodeRedeem(string) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordReminderScan(time.Duration, int, int) {}
func (Nop) RecordExpiredCodesDeleted(int64) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集中のエラーはレスポンスに含めず、取得できたメトリクスだけを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// NewServer は/metricsだけを公開するHTTPサーバーを生成する。
// APIサーバーを持たないワーカープロセスのスクレイプ用。
func NewServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
