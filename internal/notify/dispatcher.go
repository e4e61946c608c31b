package notify

import (
	"context"
	"log/slog"
)

// Dispatcher は通知リストをトランスポートのバッチ上限に分割して送信する。
// バッチ単位の送信失敗はログに記録するのみで、残りのバッチの送信は継続する。
// 再送キューは持たない。
type Dispatcher struct {
	sender    PushSender
	logger    *slog.Logger
	batchSize int
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
func NewDispatcher(sender PushSender, logger *slog.Logger, batchSize int) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		sender:    sender,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Dispatch は通知を送信する。戻り値は送信試行した件数と失敗した件数。
// プッシュトークンが空の通知は送信対象から除外する。
func (d *Dispatcher) Dispatch(ctx context.Context, notifications []Notification) (sent int, failed int) {
	valid := make([]Notification, 0, len(notifications))
	for _, n := range notifications {
		if n.PushToken == "" {
			continue
		}
		valid = append(valid, n)
	}
	if len(valid) == 0 {
		return 0, 0
	}

	for start := 0; start < len(valid); start += d.batchSize {
		end := start + d.batchSize
		if end > len(valid) {
			end = len(valid)
		}
		batch := valid[start:end]

		if err := d.sender.Send(ctx, batch); err != nil {
			d.logger.Error("通知バッチの送信に失敗しました",
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()),
			)
			failed += len(batch)
			continue
		}
		sent += len(batch)
	}

	d.logger.Info("通知配信完了",
		slog.Int("sent", sent),
		slog.Int("failed", failed),
	)

	return sent, failed
}
