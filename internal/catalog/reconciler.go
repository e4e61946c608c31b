// Package catalog はカタログ商品のリコンサイル処理を提供する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/kicksync/internal/model"
	"github.com/hitoshi/kicksync/internal/repository"
	"github.com/hitoshi/kicksync/internal/security"
)

// Report は1回のリコンサイル実行の集計結果。
// 新規・復活した商品IDは後続のアラートマッチャーへの入力となる。
type Report struct {
	NewProducts          int
	UpdatedProducts      int
	VendorPricesUpserted int
	RestockedProducts    int
	Errors               []string

	NewProductIDs       []string
	RestockedProductIDs []string
}

// Reconciler は正規化済み商品のカタログへの取り込みを行う。
// 2段階の同一性判定で重複登録を防ぎ、ベンダー価格の更新と
// 最安値の再計算までを1商品単位で完結させる。
type Reconciler struct {
	productRepo     repository.ProductRepository
	vendorRepo      repository.VendorRepository
	vendorPriceRepo repository.VendorPriceRepository
	sanitizer       security.DescriptionSanitizerService
	logger          *slog.Logger
}

// NewReconciler はReconcilerの新しいインスタンスを生成する。
func NewReconciler(
	productRepo repository.ProductRepository,
	vendorRepo repository.VendorRepository,
	vendorPriceRepo repository.VendorPriceRepository,
	sanitizer security.DescriptionSanitizerService,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		productRepo:     productRepo,
		vendorRepo:      vendorRepo,
		vendorPriceRepo: vendorPriceRepo,
		sanitizer:       sanitizer,
		logger:          logger,
	}
}

// Process は正規化済み商品をアダプターの返却順に1件ずつ取り込む。
// 1件の処理失敗はエラーとして記録し、残りの処理を継続する。
func (r *Reconciler) Process(ctx context.Context, products []model.NormalizedProduct) *Report {
	report := &Report{}
	if len(products) == 0 {
		return report
	}

	// ベンダーレジストリの参照結果は実行内でメモ化する
	vendorCache := make(map[string]*model.Vendor)
	restocked := make(map[string]bool)

	for _, incoming := range products {
		if err := r.processOne(ctx, incoming, vendorCache, restocked, report); err != nil {
			r.logger.Error("商品の取り込みに失敗しました",
				slog.String("source_id", incoming.SourceID),
				slog.String("source_name", incoming.SourceName),
				slog.String("error", err.Error()),
			)
			report.Errors = append(report.Errors, model.NewProcessFailedError(incoming.SourceID, err.Error()).Error())
		}
	}

	for id := range restocked {
		report.RestockedProductIDs = append(report.RestockedProductIDs, id)
	}
	report.RestockedProducts = len(report.RestockedProductIDs)

	r.logger.Info("リコンサイル完了",
		slog.Int("new", report.NewProducts),
		slog.Int("updated", report.UpdatedProducts),
		slog.Int("vendor_prices", report.VendorPricesUpserted),
		slog.Int("restocked", report.RestockedProducts),
		slog.Int("errors", len(report.Errors)),
	)

	return report
}

// processOne は1商品のカタログ反映を行う。
// カタログレコードのUPSERT → ベンダー価格のUPSERT → 最安値の再計算の順。
func (r *Reconciler) processOne(
	ctx context.Context,
	incoming model.NormalizedProduct,
	vendorCache map[string]*model.Vendor,
	restocked map[string]bool,
	report *Report,
) error {
	now := time.Now()

	existing, err := r.matchExisting(ctx, incoming)
	if err != nil {
		return fmt.Errorf("同一性判定に失敗: %w", err)
	}

	var product *model.Product
	if existing != nil {
		r.mergeProduct(existing, incoming, now)
		if err := r.productRepo.Update(ctx, existing); err != nil {
			return fmt.Errorf("商品の更新に失敗: %w", err)
		}
		product = existing
		report.UpdatedProducts++
	} else {
		product = r.newProduct(incoming, now)
		if err := r.productRepo.Create(ctx, product); err != nil {
			return fmt.Errorf("商品の作成に失敗: %w", err)
		}
		report.NewProducts++
		report.NewProductIDs = append(report.NewProductIDs, product.ID)
	}

	for _, vp := range incoming.VendorPrices {
		vendor, err := r.lookupVendor(ctx, vp.VendorSlug, vendorCache)
		if err != nil {
			return fmt.Errorf("ベンダーの参照に失敗: %w", err)
		}
		if vendor == nil {
			// レジストリ未登録のベンダーは取り込まない（自動作成もしない）
			report.Errors = append(report.Errors, model.NewUnknownVendorError(vp.VendorSlug).Error())
			continue
		}

		isRestock, err := r.upsertVendorPrice(ctx, product.ID, vendor.ID, vp, now)
		if err != nil {
			return fmt.Errorf("ベンダー価格の更新に失敗: %w", err)
		}
		report.VendorPricesUpserted++
		if isRestock {
			restocked[product.ID] = true
		}
	}

	// 価格行の書き込み直後に必ず再計算し、表示最安値の整合を保つ
	if err := r.recalcLowestPrice(ctx, product.ID); err != nil {
		return fmt.Errorf("最安値の再計算に失敗: %w", err)
	}

	return nil
}

// matchExisting は2段階の同一性判定で既存商品を検索する。
// 優先順位: (source_id, source_name) > style_id/skuのクロスソース照合
func (r *Reconciler) matchExisting(ctx context.Context, incoming model.NormalizedProduct) (*model.Product, error) {
	product, err := r.productRepo.FindBySourceIdentity(ctx, incoming.SourceID, incoming.SourceName)
	if err != nil {
		return nil, err
	}
	if product != nil {
		return product, nil
	}

	if incoming.StyleID == "" && incoming.SKU == "" {
		return nil, nil
	}
	return r.productRepo.FindByStyleOrSKU(ctx, incoming.StyleID, incoming.SKU)
}

// mergeProduct は既存商品へ取得内容をマージする。
// ソース識別子と商品名は無条件に上書きし、記述系フィールドは
// 取得値が非空の場合のみ上書きする（既存値をNULLへ戻さない）。
func (r *Reconciler) mergeProduct(existing *model.Product, incoming model.NormalizedProduct, now time.Time) {
	existing.SourceID = incoming.SourceID
	existing.SourceName = incoming.SourceName
	existing.Name = incoming.Name

	if incoming.StyleID != "" {
		existing.StyleID = incoming.StyleID
	}
	if incoming.SKU != "" {
		existing.SKU = incoming.SKU
	}
	if incoming.Slug != "" {
		existing.Slug = incoming.Slug
	}
	if incoming.Brand != "" {
		existing.Brand = incoming.Brand
	}
	if incoming.Category != "" {
		existing.Category = incoming.Category
	}
	if incoming.Colorway != "" {
		existing.Colorway = incoming.Colorway
	}
	if incoming.Gender != "" {
		existing.Gender = incoming.Gender
	}
	if incoming.ImageURL != "" {
		existing.ImageURL = incoming.ImageURL
	}
	if len(incoming.Images) > 0 {
		existing.Images = incoming.Images
	}
	if incoming.Description != "" {
		existing.Description = r.sanitizer.Sanitize(incoming.Description)
	}
	if incoming.RetailPrice.Valid {
		existing.RetailPrice = incoming.RetailPrice
	}
	if incoming.ReleaseDate != nil {
		existing.ReleaseDate = incoming.ReleaseDate
	}

	existing.LastSyncAt = &now
	existing.UpdatedAt = now
}

// newProduct は取得内容から新規商品を組み立てる。
func (r *Reconciler) newProduct(incoming model.NormalizedProduct, now time.Time) *model.Product {
	return &model.Product{
		ID:          uuid.New().String(),
		SourceID:    incoming.SourceID,
		SourceName:  incoming.SourceName,
		StyleID:     incoming.StyleID,
		SKU:         incoming.SKU,
		Slug:        incoming.Slug,
		Name:        incoming.Name,
		Brand:       incoming.Brand,
		Category:    incoming.Category,
		Colorway:    incoming.Colorway,
		Gender:      incoming.Gender,
		ImageURL:    incoming.ImageURL,
		Images:      incoming.Images,
		Description: r.sanitizer.Sanitize(incoming.Description),
		RetailPrice: incoming.RetailPrice,
		ReleaseDate: incoming.ReleaseDate,
		LastSyncAt:  &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// lookupVendor はslugでベンダーを検索する。結果はnil（未登録）も含めメモ化する。
func (r *Reconciler) lookupVendor(
	ctx context.Context,
	slug string,
	cache map[string]*model.Vendor,
) (*model.Vendor, error) {
	if vendor, ok := cache[slug]; ok {
		return vendor, nil
	}
	vendor, err := r.vendorRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	cache[slug] = vendor
	return vendor, nil
}

// upsertVendorPrice は(product_id, vendor_id)の価格レコードをUPSERTする。
// 戻り値は在庫復活（out-of-stock → in-stock遷移）かどうか。
// stock_changed_atは在庫フラグが反転した場合のみ更新する。
func (r *Reconciler) upsertVendorPrice(
	ctx context.Context,
	productID, vendorID string,
	incoming model.NormalizedVendorPrice,
	now time.Time,
) (bool, error) {
	prior, err := r.vendorPriceRepo.FindByProductAndVendor(ctx, productID, vendorID)
	if err != nil {
		return false, err
	}

	if prior == nil {
		price := &model.VendorPrice{
			ID:             uuid.New().String(),
			ProductID:      productID,
			VendorID:       vendorID,
			Price:          incoming.Price,
			URL:            incoming.URL,
			InStock:        incoming.InStock,
			IsAffiliateURL: incoming.IsAffiliateURL,
			LastFetchedAt:  now,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		// 初回観測は在庫遷移なし
		return false, r.vendorPriceRepo.Create(ctx, price)
	}

	isRestock := !prior.InStock && incoming.InStock
	if prior.InStock != incoming.InStock {
		prior.StockChangedAt = &now
	}

	prior.Price = incoming.Price
	prior.URL = incoming.URL
	prior.InStock = incoming.InStock
	prior.IsAffiliateURL = incoming.IsAffiliateURL
	prior.LastFetchedAt = now
	prior.UpdatedAt = now

	return isRestock, r.vendorPriceRepo.Update(ctx, prior)
}

// recalcLowestPrice は在庫あり・価格非NULLのベンダー価格の最小値を
// current_lowest_priceへ書き戻す。該当価格が無い場合はNULLに戻す。
func (r *Reconciler) recalcLowestPrice(ctx context.Context, productID string) error {
	prices, err := r.vendorPriceRepo.ListInStockPrices(ctx, productID)
	if err != nil {
		return err
	}

	var lowest decimal.NullDecimal
	if len(prices) > 0 {
		// 昇順で返るため先頭が最安値
		lowest = decimal.NullDecimal{Decimal: prices[0], Valid: true}
	}

	return r.productRepo.UpdateLowestPrice(ctx, productID, lowest)
}
