package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresPriceAlertRepo はPostgreSQLを使用した目標価格アラートリポジトリ。
type PostgresPriceAlertRepo struct {
	db *sql.DB
}

// NewPostgresPriceAlertRepo はPostgresPriceAlertRepoを生成する。
func NewPostgresPriceAlertRepo(db *sql.DB) *PostgresPriceAlertRepo {
	return &PostgresPriceAlertRepo{db: db}
}

// ListUntriggered は未発火の全アラートを商品の最安値と
// ユーザーのプッシュトークン付きで返す。
func (r *PostgresPriceAlertRepo) ListUntriggered(ctx context.Context) ([]PriceAlertCandidate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.user_id, a.product_id, a.target_price, a.is_triggered, a.created_at,
		        p.name, p.current_lowest_price,
		        COALESCE(u.push_token, '') AS push_token
		 FROM price_alerts a
		 JOIN products p ON p.id = a.product_id
		 JOIN users u ON u.id = a.user_id
		 WHERE a.is_triggered = false
		 ORDER BY a.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("未発火アラートの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var candidates []PriceAlertCandidate
	for rows.Next() {
		var c PriceAlertCandidate
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.ProductID, &c.TargetPrice, &c.IsTriggered, &c.CreatedAt,
			&c.ProductName, &c.CurrentLowestPrice, &c.PushToken,
		); err != nil {
			return nil, fmt.Errorf("アラート行の読み取りに失敗しました: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("未発火アラートの走査に失敗しました: %w", err)
	}

	return candidates, nil
}

// MarkTriggered は発火したアラートを単一トランザクションで一括更新する。
// 1件でも失敗した場合は全件ロールバックしてエラーを返す。
func (r *PostgresPriceAlertRepo) MarkTriggered(ctx context.Context, triggered []TriggeredPriceAlert) error {
	if len(triggered) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE price_alerts
		 SET is_triggered = true, triggered_at = $2, triggered_price = $3
		 WHERE id = $1 AND is_triggered = false`)
	if err != nil {
		return fmt.Errorf("更新文の準備に失敗しました: %w", err)
	}
	defer stmt.Close()

	for _, t := range triggered {
		if _, err := stmt.ExecContext(ctx, t.AlertID, t.TriggeredAt, t.TriggeredPrice); err != nil {
			return fmt.Errorf("アラートの発火更新に失敗しました (alert_id=%s): %w", t.AlertID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PriceAlertRepository = (*PostgresPriceAlertRepo)(nil)
