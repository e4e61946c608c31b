// Package model はドメインモデルを定義する。
package model

import "time"

// SyncStatus はフィードソースの直近同期結果を表す。
type SyncStatus string

const (
	// SyncStatusSuccess は直近の同期が成功したことを示す。
	SyncStatusSuccess SyncStatus = "success"
	// SyncStatusError は直近の同期がエラーで終了したことを示す。
	SyncStatusError SyncStatus = "error"
)

// FeedSource は外部マーケットプレイスの取り込み設定を表す。
// 同期状態フィールドはスケジューラのみが更新する。
type FeedSource struct {
	ID                  string
	Name                string
	AdapterType         string
	Config              map[string]string // アダプター固有設定（JSONBをそのまま受け渡す）
	SyncIntervalMinutes int
	LastSyncAt          *time.Time
	LastSyncStatus      SyncStatus
	LastSyncError       string
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsDue は同期間隔が経過しているかを判定する。
// 一度も同期していないソースは即時対象とする。
func (s *FeedSource) IsDue(now time.Time) bool {
	if s.LastSyncAt == nil {
		return true
	}
	interval := time.Duration(s.SyncIntervalMinutes) * time.Minute
	return now.Sub(*s.LastSyncAt) >= interval
}
