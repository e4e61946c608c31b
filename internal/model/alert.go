// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceAlert はユーザーが商品に設定した目標価格アラートを表す。
// (UserID, ProductID) につき未発火のアラートは1件のみ。
// 一度発火すると不変の履歴となり、再通知には削除と再作成が必要。
type PriceAlert struct {
	ID             string
	UserID         string
	ProductID      string
	TargetPrice    decimal.Decimal
	IsTriggered    bool
	TriggeredAt    *time.Time
	TriggeredPrice decimal.NullDecimal
	CreatedAt      time.Time
}

// DropAlertType はドロップアラートの種別を表す。
type DropAlertType string

const (
	// DropAlertTypeDrop は新商品の登場で発火するアラート種別。
	DropAlertTypeDrop DropAlertType = "drop"
	// DropAlertTypeRestock は再入荷で発火するアラート種別。
	DropAlertTypeRestock DropAlertType = "restock"
)

// DropAlert は条件ベースの新着/再入荷アラートを表す。
// nilの条件はワイルドカードとして扱い、非nilの条件はすべてAND一致が必要。
type DropAlert struct {
	ID              string
	UserID          string
	AlertType       DropAlertType
	Brand           *string
	Category        *string
	Keywords        *string // カンマ区切り。いずれか1語が商品名に含まれれば一致
	MinPrice        decimal.NullDecimal
	MaxPrice        decimal.NullDecimal
	IsActive        bool
	TriggeredCount  int
	LastTriggeredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OnCooldown はアラートがクールダウン期間中かを判定する。
// 発火履歴がない場合は常にfalseを返す。
func (a *DropAlert) OnCooldown(now time.Time, window time.Duration) bool {
	if a.LastTriggeredAt == nil {
		return false
	}
	return now.Sub(*a.LastTriggeredAt) < window
}
