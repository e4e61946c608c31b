// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやアラート評価から利用する。
type MetricsCollector interface {
	RecordSyncSuccess(sourceName string)
	RecordSyncFailure(sourceName string)
	RecordSyncLatency(duration time.Duration)
	RecordProductsNew(count int)
	RecordProductsUpdated(count int)
	RecordVendorPricesUpserted(count int)
	RecordRestocks(count int)
	RecordAlertsTriggered(alertType string, count int)
	RecordNotifications(sent, failed int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess       *prometheus.CounterVec
	syncFail          *prometheus.CounterVec
	syncLatency       prometheus.Histogram
	productsNew       prometheus.Counter
	productsUpdated   prometheus.Counter
	vendorPrices      prometheus.Counter
	restocks          prometheus.Counter
	alertsTriggered   *prometheus.CounterVec
	notificationsSent prometheus.Counter
	notificationsFail prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kicksync_sync_success_total",
			Help: "ソース同期成功の合計数",
		}, []string{"source"}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kicksync_sync_fail_total",
			Help: "ソース同期失敗の合計数",
		}, []string{"source"}),
		syncLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kicksync_sync_latency_seconds",
			Help:    "ソース同期のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		productsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kicksync_products_new_total",
			Help: "新規作成された商品の合計数",
		}),
		productsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kicksync_products_updated_total",
			Help: "更新された商品の合計数",
		}),
		vendorPrices: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kicksync_vendor_prices_upserted_total",
			Help: "アップサートされたベンダー価格の合計数",
		}),
		restocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kicksync_restocks_total",
			Help: "検出された再入荷の合計数",
		}),
		alertsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kicksync_alerts_triggered_total",
			Help: "発火したアラートの種別ごとの合計数",
		}, []string{"alert_type"}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kicksync_notifications_sent_total",
			Help: "送信に成功したプッシュ通知の合計数",
		}),
		notificationsFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kicksync_notifications_fail_total",
			Help: "送信に失敗したプッシュ通知の合計数",
		}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.syncLatency,
		c.productsNew,
		c.productsUpdated,
		c.vendorPrices,
		c.restocks,
		c.alertsTriggered,
		c.notificationsSent,
		c.notificationsFail,
	)

	return c
}

// RecordSyncSuccess はソース同期成功を記録する。
func (c *Collector) RecordSyncSuccess(sourceName string) {
	c.syncSuccess.WithLabelValues(sourceName).Inc()
}

// RecordSyncFailure はソース同期失敗を記録する。
func (c *Collector) RecordSyncFailure(sourceName string) {
	c.syncFail.WithLabelValues(sourceName).Inc()
}

// RecordSyncLatency は1ソース同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(duration time.Duration) {
	c.syncLatency.Observe(duration.Seconds())
}

// RecordProductsNew は新規作成された商品数を記録する。
func (c *Collector) RecordProductsNew(count int) {
	c.productsNew.Add(float64(count))
}

// RecordProductsUpdated は更新された商品数を記録する。
func (c *Collector) RecordProductsUpdated(count int) {
	c.productsUpdated.Add(float64(count))
}

// RecordVendorPricesUpserted はアップサートされたベンダー価格数を記録する。
func (c *Collector) RecordVendorPricesUpserted(count int) {
	c.vendorPrices.Add(float64(count))
}

// RecordRestocks は検出された再入荷数を記録する。
func (c *Collector) RecordRestocks(count int) {
	c.restocks.Add(float64(count))
}

// RecordAlertsTriggered は発火したアラート数を種別ラベル付きで記録する。
func (c *Collector) RecordAlertsTriggered(alertType string, count int) {
	c.alertsTriggered.WithLabelValues(alertType).Add(float64(count))
}

// RecordNotifications は通知配信の成功数と失敗数を記録する。
func (c *Collector) RecordNotifications(sent, failed int) {
	c.notificationsSent.Add(float64(sent))
	c.notificationsFail.Add(float64(failed))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
