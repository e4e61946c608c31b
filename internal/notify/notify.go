// Package notify はプッシュ通知の配信機能を提供する。
// Expoプッシュサービスへの送信クライアントとバッチ分割を行うディスパッチャーを含む。
package notify

import "context"

// Notification は1件のプッシュ通知ペイロード。
type Notification struct {
	PushToken string
	Title     string
	Body      string
	Data      map[string]string
}

// PushSender はプッシュ通知トランスポートのインターフェース。
type PushSender interface {
	// Send は1バッチ分の通知を送信する。バッチサイズの上限管理は呼び出し元が行う。
	Send(ctx context.Context, notifications []Notification) error
}
