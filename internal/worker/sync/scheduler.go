package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/kicksync/internal/metrics"
	"github.com/hitoshi/kicksync/internal/model"
	"github.com/hitoshi/kicksync/internal/repository"
)

// SourceSyncService は1ソースの同期実行インターフェース。
type SourceSyncService interface {
	// Sync は指定ソースを同期する。エラーはソースの同期状態として記録される。
	Sync(ctx context.Context, source *model.FeedSource) error
}

// Scheduler はフィードソース同期のスケジューリングを行う。
// ティッカーごとにアクティブなソースを読み直し、同期間隔が経過した
// ソースを1件ずつ順番に同期する。共有カタログストアへの書き込みが
// 交錯しないよう、ソース間の並列実行は行わない。
type Scheduler struct {
	sourceRepo repository.FeedSourceRepository
	syncer     SourceSyncService
	collector  metrics.MetricsCollector
	logger     *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(
	sourceRepo repository.FeedSourceRepository,
	syncer SourceSyncService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		sourceRepo: sourceRepo,
		syncer:     syncer,
		collector:  collector,
		logger:     logger,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("同期スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("同期スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は1回の同期サイクルを実行する。
// アクティブなソースのうち同期間隔が経過したものを順番に同期し、
// 各ソースの同期結果を状態フィールドへ書き戻す。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	sources, err := s.sourceRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	var due []*model.FeedSource
	now := time.Now()
	for _, source := range sources {
		if source.IsDue(now) {
			due = append(due, source)
		}
	}

	if len(due) == 0 {
		s.logger.Info("同期対象のソースはありません")
		return nil
	}

	s.logger.Info("同期サイクルを開始します",
		slog.Int("source_count", len(due)),
	)

	for _, source := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.syncOne(ctx, source)
	}

	duration := time.Since(start)
	s.logger.Info("同期サイクルが完了しました",
		slog.Int("source_count", len(due)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// syncOne は1ソースを同期し、結果を状態フィールドへ書き戻す。
// 書き戻しの失敗はログに記録するのみで、残りのソースの同期は継続する。
func (s *Scheduler) syncOne(ctx context.Context, source *model.FeedSource) {
	start := time.Now()

	err := s.syncer.Sync(ctx, source)
	s.collector.RecordSyncLatency(time.Since(start))

	now := time.Now()
	if err != nil {
		s.logger.Error("ソース同期に失敗しました",
			slog.String("source_id", source.ID),
			slog.String("source_name", source.Name),
			slog.String("error", err.Error()),
		)
		s.collector.RecordSyncFailure(source.Name)
		ApplySyncError(source, err.Error(), now)
	} else {
		s.collector.RecordSyncSuccess(source.Name)
		ApplySyncSuccess(source, now)
	}

	if err := s.sourceRepo.UpdateSyncStatus(ctx, source); err != nil {
		s.logger.Error("同期状態の書き戻しに失敗しました",
			slog.String("source_id", source.ID),
			slog.String("error", err.Error()),
		)
	}
}
