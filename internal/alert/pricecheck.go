package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kicksync/internal/metrics"
	"github.com/hitoshi/kicksync/internal/notify"
	"github.com/hitoshi/kicksync/internal/repository"
)

// PriceChecker は目標価格アラートの定期チェックジョブ。
// リコンサイラとは独立したタイマーで動作し、未発火のアラートを
// 商品の最安値と突き合わせて発火させる。
type PriceChecker struct {
	priceAlertRepo repository.PriceAlertRepository
	dispatcher     *notify.Dispatcher
	collector      metrics.MetricsCollector
	interval       time.Duration
	logger         *slog.Logger
}

// NewPriceChecker はPriceCheckerの新しいインスタンスを生成する。
func NewPriceChecker(
	priceAlertRepo repository.PriceAlertRepository,
	dispatcher *notify.Dispatcher,
	collector metrics.MetricsCollector,
	interval time.Duration,
	logger *slog.Logger,
) *PriceChecker {
	return &PriceChecker{
		priceAlertRepo: priceAlertRepo,
		dispatcher:     dispatcher,
		collector:      collector,
		interval:       interval,
		logger:         logger,
	}
}

// Start は価格チェックジョブをティッカーで定期実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (p *PriceChecker) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("価格チェックジョブを開始しました",
		slog.Duration("interval", p.interval),
	)

	// 起動直後に1回実行
	if err := p.RunOnce(ctx); err != nil {
		p.logger.Error("価格チェックサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("価格チェックジョブを停止しました")
			return
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil {
				p.logger.Error("価格チェックサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回の価格チェックサイクルを実行する。
// 最安値が目標価格以下（10進数比較）になったアラートを単一トランザクションで
// 一括発火させる。書き込みに失敗した場合はエラーを返し、次のサイクルで再試行する。
// 通知はプッシュトークンを持つユーザーに対してのみ組み立てる。
func (p *PriceChecker) RunOnce(ctx context.Context) error {
	start := time.Now()

	candidates, err := p.priceAlertRepo.ListUntriggered(ctx)
	if err != nil {
		return fmt.Errorf("未発火アラートの取得に失敗しました: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	now := time.Now()
	var triggered []repository.TriggeredPriceAlert
	var notifications []notify.Notification

	for _, c := range candidates {
		if !c.CurrentLowestPrice.Valid {
			continue
		}
		lowest := c.CurrentLowestPrice.Decimal
		if lowest.GreaterThan(c.TargetPrice) {
			continue
		}

		triggered = append(triggered, repository.TriggeredPriceAlert{
			AlertID:        c.ID,
			TriggeredPrice: lowest,
			TriggeredAt:    now,
		})

		// トークン未登録のユーザーのアラートも発火自体は行う
		if c.PushToken != "" {
			notifications = append(notifications, notify.Notification{
				PushToken: c.PushToken,
				Title:     "目標価格に到達しました",
				Body:      fmt.Sprintf("%sが%sになりました（目標 %s）", c.ProductName, lowest.String(), c.TargetPrice.String()),
				Data: map[string]string{
					"type":       "price_alert",
					"alert_id":   c.ID,
					"product_id": c.ProductID,
				},
			})
		}
	}

	if len(triggered) == 0 {
		p.logger.Info("価格チェックサイクルが完了しました",
			slog.Int("candidates", len(candidates)),
			slog.Int("triggered", 0),
		)
		return nil
	}

	// 全件成功か全件ロールバックのいずれか。失敗時は次サイクルで再試行する
	if err := p.priceAlertRepo.MarkTriggered(ctx, triggered); err != nil {
		return fmt.Errorf("アラート発火の一括更新に失敗しました: %w", err)
	}
	p.collector.RecordAlertsTriggered("price", len(triggered))

	if len(notifications) > 0 {
		sent, failed := p.dispatcher.Dispatch(ctx, notifications)
		p.collector.RecordNotifications(sent, failed)
	}

	duration := time.Since(start)
	p.logger.Info("価格チェックサイクルが完了しました",
		slog.Int("candidates", len(candidates)),
		slog.Int("triggered", len(triggered)),
		slog.Int("notified", len(notifications)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
