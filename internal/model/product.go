// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product はカタログの正規商品レコードを表す。
// 複数ソースの情報を1レコードに集約し、パイプラインからは削除されない。
type Product struct {
	ID                 string
	SourceID           string
	SourceName         string
	StyleID            string
	SKU                string
	Slug               string
	Name               string
	Brand              string
	Category           string
	Colorway           string
	Gender             string
	ImageURL           string
	Images             []string
	Description        string // サニタイズ済みテキスト
	RetailPrice        decimal.NullDecimal
	ReleaseDate        *time.Time
	CurrentLowestPrice decimal.NullDecimal // 在庫ありベンダー価格の最安値（導出値）
	LastSyncAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Vendor は既知の販売ベンダーを表す。
// レジストリに存在しないベンダーの価格は取り込まれない。
type Vendor struct {
	ID         string
	Slug       string
	Name       string
	WebsiteURL string
	CreatedAt  time.Time
}

// VendorPrice は商品×ベンダーごとの観測価格を表す。
// (ProductID, VendorID) で一意。
type VendorPrice struct {
	ID             string
	ProductID      string
	VendorID       string
	Price          decimal.NullDecimal
	URL            string
	InStock        bool
	IsAffiliateURL bool
	LastFetchedAt  time.Time
	StockChangedAt *time.Time // 在庫フラグが反転した最新時刻
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NormalizedProduct はソースアダプターが生成するソース非依存の商品表現。
// カタログリコンサイラへの入力となる。
type NormalizedProduct struct {
	SourceID     string
	SourceName   string
	StyleID      string
	SKU          string
	Slug         string
	Name         string
	Brand        string
	Category     string
	Colorway     string
	Gender       string
	ImageURL     string
	Images       []string
	Description  string // 未サニタイズ
	RetailPrice  decimal.NullDecimal
	ReleaseDate  *time.Time
	VendorPrices []NormalizedVendorPrice
}

// NormalizedVendorPrice は正規化済み商品に紐づくベンダー価格の観測値。
// ベンダーはslugで参照し、リコンサイラがレジストリと照合する。
type NormalizedVendorPrice struct {
	VendorSlug     string
	Price          decimal.NullDecimal
	URL            string
	InStock        bool
	IsAffiliateURL bool
}
