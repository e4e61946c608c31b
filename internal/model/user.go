// Package model はドメインモデルを定義する。
package model

import "time"

// User は通知の宛先となるユーザーを表す。
// パイプラインはプッシュトークン以外のユーザー情報を扱わない。
type User struct {
	ID        string
	Email     string
	PushToken string // 未登録の場合は空文字
	CreatedAt time.Time
	UpdatedAt time.Time
}
