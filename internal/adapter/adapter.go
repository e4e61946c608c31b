// Package adapter は外部マーケットプレイスのソースアダプターを提供する。
// 各アダプターはソース固有のAPIレスポンスをNormalizedProductへ変換する。
package adapter

import (
	"context"
	"strconv"

	"github.com/hitoshi/kicksync/internal/model"
)

// FetchResult は1回のフェッチの結果を表す。
// エラーはこの構造体に集約され、アダプター境界の外へは送出されない。
type FetchResult struct {
	Products     []model.NormalizedProduct
	TotalFetched int      // 正規化失敗分も含むソースから受信した件数
	Errors       []string // フェッチ/正規化エラー（1件の失敗は他の件に影響しない）
}

// Adapter はソースアダプターの実行インターフェース。
type Adapter interface {
	// Fetch は設定に従いソースAPIをページングしながら商品を取得・正規化する。
	// ネットワークエラーは残ページの取得のみを中断し、取得済み分は返す。
	// 必須クレデンシャル欠落時は商品0件とエラー1件を即座に返す。
	Fetch(ctx context.Context, config map[string]string) *FetchResult
}

// Registry はアダプター種別からアダプター実装への対応表。
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry は空のRegistryを生成する。
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register はアダプター種別に対する実装を登録する。同名の登録は上書きする。
func (r *Registry) Register(adapterType string, a Adapter) {
	r.adapters[adapterType] = a
}

// Get はアダプター種別に対応する実装を返す。未登録の場合は第2戻り値がfalse。
func (r *Registry) Get(adapterType string) (Adapter, bool) {
	a, ok := r.adapters[adapterType]
	return a, ok
}

// Types は登録済みのアダプター種別を返す。
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}
	return types
}

// configString は設定バッグから文字列値を取り出す。未設定の場合はデフォルト値を返す。
func configString(cfg map[string]string, key, defaultVal string) string {
	if v, ok := cfg[key]; ok && v != "" {
		return v
	}
	return defaultVal
}

// configInt は設定バッグから整数値を取り出す。未設定・不正な値の場合はデフォルト値を返す。
func configInt(cfg map[string]string, key string, defaultVal int) int {
	v, ok := cfg[key]
	if !ok || v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}
