package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresDropAlertRepo はPostgreSQLを使用したドロップアラートリポジトリ。
type PostgresDropAlertRepo struct {
	db *sql.DB
}

// NewPostgresDropAlertRepo はPostgresDropAlertRepoを生成する。
func NewPostgresDropAlertRepo(db *sql.DB) *PostgresDropAlertRepo {
	return &PostgresDropAlertRepo{db: db}
}

// ListActive はis_active = trueの全アラートをプッシュトークン付きで返す。
func (r *PostgresDropAlertRepo) ListActive(ctx context.Context) ([]DropAlertWithToken, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.alert_type, a.brand, a.category, a.keywords,
		        a.min_price, a.max_price, a.is_active, a.triggered_count, a.last_triggered_at,
		        a.created_at, a.updated_at,
		        COALESCE(u.push_token, '') AS push_token
		 FROM drop_alerts a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.is_active = true
		 ORDER BY a.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("有効なドロップアラートの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var alerts []DropAlertWithToken
	for rows.Next() {
		var a DropAlertWithToken
		var brand, category, keywords sql.NullString
		var lastTriggeredAt sql.NullTime

		if err := rows.Scan(
			&a.ID, &a.UserID, &a.AlertType, &brand, &category, &keywords,
			&a.MinPrice, &a.MaxPrice, &a.IsActive, &a.TriggeredCount, &lastTriggeredAt,
			&a.CreatedAt, &a.UpdatedAt,
			&a.PushToken,
		); err != nil {
			return nil, fmt.Errorf("ドロップアラート行の読み取りに失敗しました: %w", err)
		}

		a.Brand = nullStringPtr(brand)
		a.Category = nullStringPtr(category)
		a.Keywords = nullStringPtr(keywords)
		a.LastTriggeredAt = nullTimePtr(lastTriggeredAt)

		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("有効なドロップアラートの走査に失敗しました: %w", err)
	}

	return alerts, nil
}

// RecordTrigger はtriggered_countをインクリメントしlast_triggered_atを更新する。
func (r *PostgresDropAlertRepo) RecordTrigger(ctx context.Context, alertID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE drop_alerts
		 SET triggered_count = triggered_count + 1, last_triggered_at = $2, updated_at = $2
		 WHERE id = $1`,
		alertID, at,
	)
	if err != nil {
		return fmt.Errorf("ドロップアラートの発火記録に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ DropAlertRepository = (*PostgresDropAlertRepo)(nil)
