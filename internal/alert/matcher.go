// Package alert はドロップアラートと目標価格アラートの評価を提供する。
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/kicksync/internal/metrics"
	"github.com/hitoshi/kicksync/internal/model"
	"github.com/hitoshi/kicksync/internal/notify"
	"github.com/hitoshi/kicksync/internal/repository"
)

// Matcher はリコンサイル結果の新規・再入荷商品をドロップアラートの
// 条件と突き合わせ、一致したアラートの発火と通知の組み立てを行う。
type Matcher struct {
	productRepo   repository.ProductRepository
	dropAlertRepo repository.DropAlertRepository
	dispatcher    *notify.Dispatcher
	collector     metrics.MetricsCollector
	cooldown      time.Duration
	logger        *slog.Logger
}

// NewMatcher はMatcherの新しいインスタンスを生成する。
func NewMatcher(
	productRepo repository.ProductRepository,
	dropAlertRepo repository.DropAlertRepository,
	dispatcher *notify.Dispatcher,
	collector metrics.MetricsCollector,
	cooldown time.Duration,
	logger *slog.Logger,
) *Matcher {
	return &Matcher{
		productRepo:   productRepo,
		dropAlertRepo: dropAlertRepo,
		dispatcher:    dispatcher,
		collector:     collector,
		cooldown:      cooldown,
		logger:        logger,
	}
}

// CheckBatch は1回のリコンサイル結果に対するアラート評価を行う。
// 新規商品はdrop種別、再入荷商品はrestock種別のアラートと照合する。
// 失敗はバッチ全体で1件のエラーとして返し、適用済みのカタログ書き込みには影響しない。
func (m *Matcher) CheckBatch(ctx context.Context, newProductIDs, restockedProductIDs []string) error {
	if len(newProductIDs) == 0 && len(restockedProductIDs) == 0 {
		return nil
	}

	alerts, err := m.dropAlertRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("アクティブなアラートの取得に失敗: %w", err)
	}
	if len(alerts) == 0 {
		return nil
	}

	now := time.Now()
	var notifications []notify.Notification
	triggered := 0
	triggeredByType := make(map[model.DropAlertType]int)

	for _, spec := range []struct {
		alertType model.DropAlertType
		ids       []string
	}{
		{model.DropAlertTypeDrop, newProductIDs},
		{model.DropAlertTypeRestock, restockedProductIDs},
	} {
		if len(spec.ids) == 0 {
			continue
		}
		products, err := m.productRepo.ListByIDs(ctx, spec.ids)
		if err != nil {
			return fmt.Errorf("商品の取得に失敗: %w", err)
		}

		for _, product := range products {
			for i := range alerts {
				alert := &alerts[i]
				if alert.AlertType != spec.alertType {
					continue
				}
				if !Matches(&alert.DropAlert, product) {
					continue
				}
				if alert.OnCooldown(now, m.cooldown) {
					// クールダウン中は状態変更なしでスキップ
					continue
				}

				if err := m.dropAlertRepo.RecordTrigger(ctx, alert.ID, now); err != nil {
					return fmt.Errorf("アラート発火の記録に失敗: %w", err)
				}
				// 同一バッチ内の後続商品にもクールダウンを効かせる
				alert.LastTriggeredAt = &now
				alert.TriggeredCount++
				triggered++
				triggeredByType[spec.alertType]++

				if alert.PushToken != "" {
					notifications = append(notifications, m.buildNotification(alert, product, spec.alertType))
				}
			}
		}
	}

	for alertType, count := range triggeredByType {
		m.collector.RecordAlertsTriggered(string(alertType), count)
	}

	if len(notifications) > 0 {
		sent, failed := m.dispatcher.Dispatch(ctx, notifications)
		m.collector.RecordNotifications(sent, failed)
	}

	m.logger.Info("ドロップアラート評価完了",
		slog.Int("new_products", len(newProductIDs)),
		slog.Int("restocked_products", len(restockedProductIDs)),
		slog.Int("active_alerts", len(alerts)),
		slog.Int("triggered", triggered),
	)

	return nil
}

// buildNotification はアラート種別に応じた通知ペイロードを組み立てる。
func (m *Matcher) buildNotification(
	alert *repository.DropAlertWithToken,
	product *model.Product,
	alertType model.DropAlertType,
) notify.Notification {
	title := "新商品が登場しました"
	if alertType == model.DropAlertTypeRestock {
		title = "再入荷がありました"
	}

	body := product.Name
	if product.CurrentLowestPrice.Valid {
		body = fmt.Sprintf("%s（最安値 %s）", product.Name, product.CurrentLowestPrice.Decimal.String())
	}

	return notify.Notification{
		PushToken: alert.PushToken,
		Title:     title,
		Body:      body,
		Data: map[string]string{
			"type":       string(alertType),
			"alert_id":   alert.ID,
			"product_id": product.ID,
		},
	}
}

// Matches はドロップアラートの条件と商品を照合する。
// nilの条件はワイルドカード、非nilの条件はすべて成立が必要（AND一致）。
func Matches(alert *model.DropAlert, product *model.Product) bool {
	if alert.Brand != nil && !strings.EqualFold(*alert.Brand, product.Brand) {
		return false
	}
	if alert.Category != nil && !strings.EqualFold(*alert.Category, product.Category) {
		return false
	}
	if alert.Keywords != nil && !matchesKeywords(*alert.Keywords, product.Name) {
		return false
	}

	// 価格条件は最安値が存在する商品に対してのみ成立する
	if alert.MinPrice.Valid || alert.MaxPrice.Valid {
		if !product.CurrentLowestPrice.Valid {
			return false
		}
		lowest := product.CurrentLowestPrice.Decimal
		if alert.MinPrice.Valid && lowest.LessThan(alert.MinPrice.Decimal) {
			return false
		}
		if alert.MaxPrice.Valid && lowest.GreaterThan(alert.MaxPrice.Decimal) {
			return false
		}
	}

	return true
}

// matchesKeywords はカンマ区切りのキーワードのいずれか1語が
// 商品名に含まれるかを大文字小文字を無視して判定する。
func matchesKeywords(keywords, productName string) bool {
	name := strings.ToLower(productName)
	for _, kw := range strings.Split(keywords, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
