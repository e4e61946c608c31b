package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/kicksync/internal/model"
)

// productColumns はSELECT句で常に使用する列の並び。scanProductと対応する。
const productColumns = `id, source_id, source_name, style_id, sku, slug, name, brand, category,
       colorway, gender, image_url, images, description, retail_price, release_date,
       current_lowest_price, last_sync_at, created_at, updated_at`

// PostgresProductRepo はPostgreSQLを使用したカタログ商品リポジトリ。
type PostgresProductRepo struct {
	db *sql.DB
}

// NewPostgresProductRepo はPostgresProductRepoを生成する。
func NewPostgresProductRepo(db *sql.DB) *PostgresProductRepo {
	return &PostgresProductRepo{db: db}
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProduct はproductColumnsの並びで1行を読み取りProductを構築する。
func scanProduct(row rowScanner) (*model.Product, error) {
	p := &model.Product{}
	var styleID, sku, slug, colorway, gender sql.NullString
	var imagesJSON []byte
	var releaseDate, lastSyncAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.SourceID, &p.SourceName, &styleID, &sku, &slug, &p.Name, &p.Brand, &p.Category,
		&colorway, &gender, &p.ImageURL, &imagesJSON, &p.Description, &p.RetailPrice, &releaseDate,
		&p.CurrentLowestPrice, &lastSyncAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.StyleID = nullStringValue(styleID)
	p.SKU = nullStringValue(sku)
	p.Slug = nullStringValue(slug)
	p.Colorway = nullStringValue(colorway)
	p.Gender = nullStringValue(gender)
	p.ReleaseDate = nullTimePtr(releaseDate)
	p.LastSyncAt = nullTimePtr(lastSyncAt)

	if len(imagesJSON) > 0 {
		if err := json.Unmarshal(imagesJSON, &p.Images); err != nil {
			return nil, fmt.Errorf("images列のデコードに失敗しました: %w", err)
		}
	}

	return p, nil
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	return p, nil
}

// FindBySourceIdentity は(source_id, source_name)で商品を検索する。
// 見つからない場合はnilを返す。
func (r *PostgresProductRepo) FindBySourceIdentity(ctx context.Context, sourceID, sourceName string) (*model.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE source_id = $1 AND source_name = $2`,
		sourceID, sourceName)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソース識別子による商品の検索に失敗しました: %w", err)
	}
	return p, nil
}

// FindByStyleOrSKU はstyleIDまたはskuをstyle_id/sku両列と照合する。
// 両引数が空の場合は検索せずnilを返す。
func (r *PostgresProductRepo) FindByStyleOrSKU(ctx context.Context, styleID, sku string) (*model.Product, error) {
	if styleID == "" && sku == "" {
		return nil, nil
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE ($1 <> '' AND (style_id = $1 OR sku = $1))
		    OR ($2 <> '' AND (style_id = $2 OR sku = $2))
		 ORDER BY created_at ASC
		 LIMIT 1`,
		styleID, sku)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("style_id/skuによる商品の検索に失敗しました: %w", err)
	}
	return p, nil
}

// ListByIDs は指定IDの商品をまとめて取得する。
func (r *PostgresProductRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("商品行の読み取りに失敗しました: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("商品一覧の走査に失敗しました: %w", err)
	}

	return products, nil
}

// Create は新規商品を作成する。
func (r *PostgresProductRepo) Create(ctx context.Context, p *model.Product) error {
	imagesJSON, err := marshalImages(p.Images)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO products (id, source_id, source_name, style_id, sku, slug, name, brand, category,
		                       colorway, gender, image_url, images, description, retail_price, release_date,
		                       current_lowest_price, last_sync_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		         $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		p.ID, p.SourceID, p.SourceName, nullString(p.StyleID), nullString(p.SKU), nullString(p.Slug),
		p.Name, p.Brand, p.Category, nullString(p.Colorway), nullString(p.Gender), p.ImageURL,
		imagesJSON, p.Description, p.RetailPrice, nullTimeFromPtr(p.ReleaseDate),
		p.CurrentLowestPrice, nullTimeFromPtr(p.LastSyncAt), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存商品を上書き更新する。current_lowest_priceはUpdateLowestPriceで更新する。
func (r *PostgresProductRepo) Update(ctx context.Context, p *model.Product) error {
	imagesJSON, err := marshalImages(p.Images)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE products SET
		    source_id = $2, source_name = $3, style_id = $4, sku = $5, slug = $6,
		    name = $7, brand = $8, category = $9, colorway = $10, gender = $11,
		    image_url = $12, images = $13, description = $14, retail_price = $15,
		    release_date = $16, last_sync_at = $17, updated_at = $18
		 WHERE id = $1`,
		p.ID, p.SourceID, p.SourceName, nullString(p.StyleID), nullString(p.SKU), nullString(p.Slug),
		p.Name, p.Brand, p.Category, nullString(p.Colorway), nullString(p.Gender),
		p.ImageURL, imagesJSON, p.Description, p.RetailPrice,
		nullTimeFromPtr(p.ReleaseDate), nullTimeFromPtr(p.LastSyncAt), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateLowestPrice は導出値current_lowest_priceのみを更新する。
func (r *PostgresProductRepo) UpdateLowestPrice(ctx context.Context, productID string, price decimal.NullDecimal) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET current_lowest_price = $2, updated_at = now() WHERE id = $1`,
		productID, price,
	)
	if err != nil {
		return fmt.Errorf("最安値の更新に失敗しました: %w", err)
	}
	return nil
}

// marshalImages は画像URL一覧をJSONB列用にエンコードする。
func marshalImages(images []string) ([]byte, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("images列のエンコードに失敗しました: %w", err)
	}
	return b, nil
}

// compile-time interface check
var _ ProductRepository = (*PostgresProductRepo)(nil)
