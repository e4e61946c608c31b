package sync

import (
	"time"

	"github.com/hitoshi/kicksync/internal/model"
)

// ApplySyncSuccess は同期成功をソースの状態へ反映する。
// エラーメッセージはクリアする。
func ApplySyncSuccess(source *model.FeedSource, now time.Time) {
	source.LastSyncAt = &now
	source.LastSyncStatus = model.SyncStatusSuccess
	source.LastSyncError = ""
	source.UpdatedAt = now
}

// ApplySyncError は同期失敗をソースの状態へ反映する。
// 失敗したランもlastSyncAtを更新し、次の同期は間隔経過後になる。
func ApplySyncError(source *model.FeedSource, reason string, now time.Time) {
	source.LastSyncAt = &now
	source.LastSyncStatus = model.SyncStatusError
	source.LastSyncError = reason
	source.UpdatedAt = now
}
