package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/kicksync/internal/model"
)

// PostgresVendorPriceRepo はPostgreSQLを使用したベンダー価格リポジトリ。
type PostgresVendorPriceRepo struct {
	db *sql.DB
}

// NewPostgresVendorPriceRepo はPostgresVendorPriceRepoを生成する。
func NewPostgresVendorPriceRepo(db *sql.DB) *PostgresVendorPriceRepo {
	return &PostgresVendorPriceRepo{db: db}
}

// FindByProductAndVendor は(product_id, vendor_id)で価格レコードを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresVendorPriceRepo) FindByProductAndVendor(ctx context.Context, productID, vendorID string) (*model.VendorPrice, error) {
	vp := &model.VendorPrice{}
	var stockChangedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, product_id, vendor_id, price, url, in_stock, is_affiliate_url,
		        last_fetched_at, stock_changed_at, created_at, updated_at
		 FROM vendor_prices WHERE product_id = $1 AND vendor_id = $2`,
		productID, vendorID,
	).Scan(
		&vp.ID, &vp.ProductID, &vp.VendorID, &vp.Price, &vp.URL, &vp.InStock, &vp.IsAffiliateURL,
		&vp.LastFetchedAt, &stockChangedAt, &vp.CreatedAt, &vp.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ベンダー価格の検索に失敗しました: %w", err)
	}

	vp.StockChangedAt = nullTimePtr(stockChangedAt)
	return vp, nil
}

// Create は新規価格レコードを作成する。
func (r *PostgresVendorPriceRepo) Create(ctx context.Context, vp *model.VendorPrice) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vendor_prices (id, product_id, vendor_id, price, url, in_stock, is_affiliate_url,
		                            last_fetched_at, stock_changed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		vp.ID, vp.ProductID, vp.VendorID, vp.Price, vp.URL, vp.InStock, vp.IsAffiliateURL,
		vp.LastFetchedAt, nullTimeFromPtr(vp.StockChangedAt), vp.CreatedAt, vp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ベンダー価格の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存価格レコードを上書き更新する。
func (r *PostgresVendorPriceRepo) Update(ctx context.Context, vp *model.VendorPrice) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE vendor_prices SET
		    price = $2, url = $3, in_stock = $4, is_affiliate_url = $5,
		    last_fetched_at = $6, stock_changed_at = $7, updated_at = $8
		 WHERE id = $1`,
		vp.ID, vp.Price, vp.URL, vp.InStock, vp.IsAffiliateURL,
		vp.LastFetchedAt, nullTimeFromPtr(vp.StockChangedAt), vp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ベンダー価格の更新に失敗しました: %w", err)
	}
	return nil
}

// ListInStockPrices は在庫あり・価格非NULLの価格を昇順で返す。
func (r *PostgresVendorPriceRepo) ListInStockPrices(ctx context.Context, productID string) ([]decimal.Decimal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT price FROM vendor_prices
		 WHERE product_id = $1 AND in_stock = true AND price IS NOT NULL
		 ORDER BY price ASC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("在庫あり価格の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var prices []decimal.Decimal
	for rows.Next() {
		var p decimal.Decimal
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("価格行の読み取りに失敗しました: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("在庫あり価格の走査に失敗しました: %w", err)
	}

	return prices, nil
}

// compile-time interface check
var _ VendorPriceRepository = (*PostgresVendorPriceRepo)(nil)
