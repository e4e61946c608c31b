// Package model はドメインモデルを定義する。
package model

import "fmt"

// PipelineError はパイプライン内で発生したエラーの統一フォーマットを表す。
// エラーコードとカテゴリにより、同期レポートやログでの集計を容易にする。
type PipelineError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: fetch, normalize, vendor, process, alert
}

// Error はerrorインターフェースを実装する。
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingCredential = "MISSING_CREDENTIAL"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeNormalizeFailed   = "NORMALIZE_FAILED"
	ErrCodeUnknownVendor     = "UNKNOWN_VENDOR"
	ErrCodeUnknownAdapter    = "UNKNOWN_ADAPTER"
	ErrCodeProcessFailed     = "PROCESS_FAILED"
	ErrCodeAlertCheckFailed  = "ALERT_CHECK_FAILED"
)

// NewMissingCredentialError は必須クレデンシャル未設定エラーを生成する。
func NewMissingCredentialError(key string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeMissingCredential,
		Message:  fmt.Sprintf("必須の認証情報が設定されていません: %s", key),
		Category: "fetch",
	}
}

// NewFetchFailedError はソースAPIのフェッチ失敗エラーを生成する。
func NewFetchFailedError(page int, reason string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("ソースAPIの取得に失敗しました (page %d): %s", page, reason),
		Category: "fetch",
	}
}

// NewNormalizeFailedError は1件の生アイテムの正規化失敗エラーを生成する。
func NewNormalizeFailedError(reason string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeNormalizeFailed,
		Message:  fmt.Sprintf("商品データの正規化に失敗しました: %s", reason),
		Category: "normalize",
	}
}

// NewUnknownVendorError はレジストリに存在しないベンダー参照のエラーを生成する。
func NewUnknownVendorError(slug string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeUnknownVendor,
		Message:  fmt.Sprintf("未登録のベンダーです: %s", slug),
		Category: "vendor",
	}
}

// NewUnknownAdapterError は未知のアダプター種別のエラーを生成する。
func NewUnknownAdapterError(adapterType string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeUnknownAdapter,
		Message:  fmt.Sprintf("未知のアダプター種別です: %s", adapterType),
		Category: "fetch",
	}
}

// NewProcessFailedError は1商品の取り込み処理失敗エラーを生成する。
func NewProcessFailedError(sourceID string, reason string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeProcessFailed,
		Message:  fmt.Sprintf("商品の取り込み処理に失敗しました (source_id=%s): %s", sourceID, reason),
		Category: "process",
	}
}

// NewAlertCheckFailedError はアラート評価のバッチ失敗エラーを生成する。
func NewAlertCheckFailedError(reason string) *PipelineError {
	return &PipelineError{
		Code:     ErrCodeAlertCheckFailed,
		Message:  fmt.Sprintf("アラート評価に失敗しました: %s", reason),
		Category: "alert",
	}
}
