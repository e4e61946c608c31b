// Package sync はフィードソースのバックグラウンド同期処理を提供する。
// スケジューラと、アダプター→リコンサイラ→アラート評価を束ねるランナーを含む。
package sync

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hitoshi/kicksync/internal/adapter"
	"github.com/hitoshi/kicksync/internal/catalog"
	"github.com/hitoshi/kicksync/internal/metrics"
	"github.com/hitoshi/kicksync/internal/model"
)

// ProductProcessor は正規化済み商品の取り込みインターフェース。
type ProductProcessor interface {
	Process(ctx context.Context, products []model.NormalizedProduct) *catalog.Report
}

// AlertChecker はリコンサイル結果に対するアラート評価インターフェース。
type AlertChecker interface {
	CheckBatch(ctx context.Context, newProductIDs, restockedProductIDs []string) error
}

// Runner は1ソースの同期（フェッチ→リコンサイル→アラート評価）を実行する。
type Runner struct {
	registry  *adapter.Registry
	processor ProductProcessor
	checker   AlertChecker
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewRunner はRunnerの新しいインスタンスを生成する。
func NewRunner(
	registry *adapter.Registry,
	processor ProductProcessor,
	checker AlertChecker,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		registry:  registry,
		processor: processor,
		checker:   checker,
		collector: collector,
		logger:    logger,
	}
}

// Sync は1ソースを同期する。戻り値のエラーは同期失敗としてソースの
// 状態に記録される。未知のアダプター種別はフェッチを試行せず即座にエラーを返す。
// アラート評価の失敗はカタログ書き込みを巻き戻さないため、ログ記録のみで
// 同期自体は成功として扱う。
func (r *Runner) Sync(ctx context.Context, source *model.FeedSource) error {
	a, ok := r.registry.Get(source.AdapterType)
	if !ok {
		return model.NewUnknownAdapterError(source.AdapterType)
	}

	config := make(map[string]string, len(source.Config)+1)
	for k, v := range source.Config {
		config[k] = v
	}
	if config["source_name"] == "" {
		config["source_name"] = source.Name
	}

	result := a.Fetch(ctx, config)

	// 1件も取得できずエラーのみの場合は同期失敗とする。
	// 取得済み分があるランは部分エラーをログに残して成功扱い。
	if len(result.Products) == 0 && len(result.Errors) > 0 {
		return &model.PipelineError{
			Code:     model.ErrCodeFetchFailed,
			Message:  strings.Join(result.Errors, "; "),
			Category: "fetch",
		}
	}

	report := r.processor.Process(ctx, result.Products)

	r.collector.RecordProductsNew(report.NewProducts)
	r.collector.RecordProductsUpdated(report.UpdatedProducts)
	r.collector.RecordVendorPricesUpserted(report.VendorPricesUpserted)
	r.collector.RecordRestocks(report.RestockedProducts)

	allErrors := append(append([]string{}, result.Errors...), report.Errors...)

	if err := r.checker.CheckBatch(ctx, report.NewProductIDs, report.RestockedProductIDs); err != nil {
		checkErr := model.NewAlertCheckFailedError(err.Error())
		r.logger.Error("アラート評価に失敗しました",
			slog.String("source_id", source.ID),
			slog.String("error", checkErr.Error()),
		)
		allErrors = append(allErrors, checkErr.Error())
	}

	r.logger.Info("ソース同期完了",
		slog.String("source_id", source.ID),
		slog.String("source_name", source.Name),
		slog.Int("total_fetched", result.TotalFetched),
		slog.Int("new", report.NewProducts),
		slog.Int("updated", report.UpdatedProducts),
		slog.Int("vendor_prices", report.VendorPricesUpserted),
		slog.Int("restocked", report.RestockedProducts),
		slog.Int("errors", len(allErrors)),
	)

	return nil
}
