// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/kicksync/internal/model"
)

// VendorRepository はベンダーレジストリの参照インターフェース。
// ベンダーの登録・削除はパイプラインの管轄外のため参照のみを提供する。
type VendorRepository interface {
	// FindBySlug はslugでベンダーを検索する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Vendor, error)

	// List は全ベンダーを返す。
	List(ctx context.Context) ([]*model.Vendor, error)
}

// ProductRepository はカタログ商品の永続化インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// FindBySourceIdentity は(source_id, source_name)で商品を検索する。
	// 同一性判定の最優先手段。見つからない場合はnilを返す。
	FindBySourceIdentity(ctx context.Context, sourceID, sourceName string) (*model.Product, error)

	// FindByStyleOrSKU はstyleIDまたはskuを既存商品のstyle_id/sku両列と照合する。
	// クロスソース重複排除の第2優先手段。両引数が空の場合と不一致の場合はnilを返す。
	FindByStyleOrSKU(ctx context.Context, styleID, sku string) (*model.Product, error)

	// ListByIDs は指定IDの商品をまとめて取得する。
	ListByIDs(ctx context.Context, ids []string) ([]*model.Product, error)

	// Create は新規商品を作成する。
	Create(ctx context.Context, product *model.Product) error

	// Update は既存商品を上書き更新する。
	Update(ctx context.Context, product *model.Product) error

	// UpdateLowestPrice は導出値current_lowest_priceのみを更新する。
	UpdateLowestPrice(ctx context.Context, productID string, price decimal.NullDecimal) error
}

// VendorPriceRepository は商品×ベンダー価格の永続化インターフェース。
type VendorPriceRepository interface {
	// FindByProductAndVendor は(product_id, vendor_id)で価格レコードを検索する。
	// 見つからない場合はnilを返す。
	FindByProductAndVendor(ctx context.Context, productID, vendorID string) (*model.VendorPrice, error)

	// Create は新規価格レコードを作成する。
	Create(ctx context.Context, price *model.VendorPrice) error

	// Update は既存価格レコードを上書き更新する。
	Update(ctx context.Context, price *model.VendorPrice) error

	// ListInStockPrices は在庫あり・価格非NULLの価格を昇順で返す。
	// 最安値の再計算に使用する。
	ListInStockPrices(ctx context.Context, productID string) ([]decimal.Decimal, error)
}

// PriceAlertCandidate は未発火の目標価格アラートを商品の最安値と
// 所有ユーザーのプッシュトークン付きで結合した構造体。
type PriceAlertCandidate struct {
	model.PriceAlert
	ProductName        string
	CurrentLowestPrice decimal.NullDecimal
	PushToken          string
}

// TriggeredPriceAlert は1回のチェックで発火したアラートの更新内容。
type TriggeredPriceAlert struct {
	AlertID        string
	TriggeredPrice decimal.Decimal
	TriggeredAt    time.Time
}

// PriceAlertRepository は目標価格アラートの永続化インターフェース。
type PriceAlertRepository interface {
	// ListUntriggered はis_triggered = falseの全アラートを
	// 商品の最安値とユーザーのプッシュトークン付きで返す。
	ListUntriggered(ctx context.Context) ([]PriceAlertCandidate, error)

	// MarkTriggered は発火したアラートを単一トランザクションで一括更新する。
	// 1件でも失敗した場合は全件ロールバックしてエラーを返す。
	MarkTriggered(ctx context.Context, triggered []TriggeredPriceAlert) error
}

// DropAlertWithToken はドロップアラートと所有ユーザーのプッシュトークンの結合。
type DropAlertWithToken struct {
	model.DropAlert
	PushToken string
}

// DropAlertRepository はドロップアラートの永続化インターフェース。
type DropAlertRepository interface {
	// ListActive はis_active = trueの全アラートをプッシュトークン付きで返す。
	ListActive(ctx context.Context) ([]DropAlertWithToken, error)

	// RecordTrigger はtriggered_countをインクリメントしlast_triggered_atを更新する。
	// それ以外のフィールドはパイプラインから変更しない。
	RecordTrigger(ctx context.Context, alertID string, at time.Time) error
}

// FeedSourceRepository はフィードソース設定の永続化インターフェース。
type FeedSourceRepository interface {
	// ListActive はis_active = trueのフィードソースを返す。
	ListActive(ctx context.Context) ([]*model.FeedSource, error)

	// UpdateSyncStatus は同期状態フィールド
	// （last_sync_at、last_sync_status、last_sync_error）を更新する。
	UpdateSyncStatus(ctx context.Context, source *model.FeedSource) error
}
