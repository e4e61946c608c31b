package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kicksync/internal/model"
)

// PostgresVendorRepo はPostgreSQLを使用したベンダーレジストリ。
type PostgresVendorRepo struct {
	db *sql.DB
}

// NewPostgresVendorRepo はPostgresVendorRepoを生成する。
func NewPostgresVendorRepo(db *sql.DB) *PostgresVendorRepo {
	return &PostgresVendorRepo{db: db}
}

// FindBySlug はslugでベンダーを検索する。見つからない場合はnilを返す。
func (r *PostgresVendorRepo) FindBySlug(ctx context.Context, slug string) (*model.Vendor, error) {
	v := &model.Vendor{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, slug, name, website_url, created_at FROM vendors WHERE slug = $1`,
		slug,
	).Scan(&v.ID, &v.Slug, &v.Name, &v.WebsiteURL, &v.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ベンダーの検索に失敗しました: %w", err)
	}
	return v, nil
}

// List は全ベンダーを返す。
func (r *PostgresVendorRepo) List(ctx context.Context) ([]*model.Vendor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, slug, name, website_url, created_at FROM vendors ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("ベンダー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var vendors []*model.Vendor
	for rows.Next() {
		v := &model.Vendor{}
		if err := rows.Scan(&v.ID, &v.Slug, &v.Name, &v.WebsiteURL, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("ベンダー行の読み取りに失敗しました: %w", err)
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ベンダー一覧の走査に失敗しました: %w", err)
	}

	return vendors, nil
}

// compile-time interface check
var _ VendorRepository = (*PostgresVendorRepo)(nil)
