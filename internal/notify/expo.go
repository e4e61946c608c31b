package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxTicketResponseSize はExpoレスポンスの最大読み取りサイズ（1MB）。
const maxTicketResponseSize = 1 * 1024 * 1024

// ExpoClient はExpoプッシュAPIのクライアント。
// 1回のSendで1バッチ分のメッセージをまとめて送信する。
type ExpoClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewExpoClient はExpoClientの新しいインスタンスを生成する。
func NewExpoClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *ExpoClient {
	return &ExpoClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

// expoMessage はExpoプッシュAPIのメッセージ形式。
type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

// expoTicketResponse はExpoプッシュAPIのチケットレスポンス。
type expoTicketResponse struct {
	Data []struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

// Send は1バッチ分の通知をExpoプッシュAPIへ送信する。
// 個別チケットのエラーはログに記録するのみで、バッチ全体の成否には影響しない。
func (c *ExpoClient) Send(ctx context.Context, notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	messages := make([]expoMessage, 0, len(notifications))
	for _, n := range notifications {
		messages = append(messages, expoMessage{
			To:    n.PushToken,
			Title: n.Title,
			Body:  n.Body,
			Data:  n.Data,
			Sound: "default",
		})
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("通知ペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Kicksync/1.0 Catalog Sync")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Expoプッシュ APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("batch_size", len(notifications)),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Expoプッシュ APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("batch_size", len(notifications)),
		)
		return fmt.Errorf("Expoプッシュ APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTicketResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var ticket expoTicketResponse
	if err := json.Unmarshal(body, &ticket); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	// 個別トークンの失敗（無効トークン等）はログに残すのみ
	for i, t := range ticket.Data {
		if t.Status != "" && t.Status != "ok" {
			c.logger.Warn("プッシュ通知チケットがエラーを返しました",
				slog.Int("index", i),
				slog.String("status", t.Status),
				slog.String("message", t.Message),
			)
		}
	}

	return nil
}

// compile-time interface check
var _ PushSender = (*ExpoClient)(nil)
