package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/kicksync/internal/model"
)

// PostgresFeedSourceRepo はPostgreSQLを使用したフィードソースリポジトリ。
type PostgresFeedSourceRepo struct {
	db *sql.DB
}

// NewPostgresFeedSourceRepo はPostgresFeedSourceRepoを生成する。
func NewPostgresFeedSourceRepo(db *sql.DB) *PostgresFeedSourceRepo {
	return &PostgresFeedSourceRepo{db: db}
}

// ListActive はis_active = trueのフィードソースを返す。
func (r *PostgresFeedSourceRepo) ListActive(ctx context.Context) ([]*model.FeedSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, adapter_type, config, sync_interval_minutes,
		        last_sync_at, last_sync_status, last_sync_error, is_active,
		        created_at, updated_at
		 FROM feed_sources
		 WHERE is_active = true
		 ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("有効なフィードソースの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.FeedSource
	for rows.Next() {
		s := &model.FeedSource{}
		var configJSON []byte
		var lastSyncAt sql.NullTime
		var status sql.NullString

		if err := rows.Scan(
			&s.ID, &s.Name, &s.AdapterType, &configJSON, &s.SyncIntervalMinutes,
			&lastSyncAt, &status, &s.LastSyncError, &s.IsActive,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("フィードソース行の読み取りに失敗しました: %w", err)
		}

		s.LastSyncAt = nullTimePtr(lastSyncAt)
		s.LastSyncStatus = model.SyncStatus(nullStringValue(status))

		if len(configJSON) > 0 {
			if err := json.Unmarshal(configJSON, &s.Config); err != nil {
				return nil, fmt.Errorf("config列のデコードに失敗しました (source=%s): %w", s.Name, err)
			}
		}
		if s.Config == nil {
			s.Config = map[string]string{}
		}

		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("有効なフィードソースの走査に失敗しました: %w", err)
	}

	return sources, nil
}

// UpdateSyncStatus は同期状態フィールドのみを更新する。
func (r *PostgresFeedSourceRepo) UpdateSyncStatus(ctx context.Context, s *model.FeedSource) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feed_sources
		 SET last_sync_at = $2, last_sync_status = $3, last_sync_error = $4, updated_at = now()
		 WHERE id = $1`,
		s.ID, nullTimeFromPtr(s.LastSyncAt), string(s.LastSyncStatus), s.LastSyncError,
	)
	if err != nil {
		return fmt.Errorf("フィードソースの同期状態更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FeedSourceRepository = (*PostgresFeedSourceRepo)(nil)
