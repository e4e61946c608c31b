package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Sync
	SyncTickInterval time.Duration // スケジューラのティック間隔
	AdapterTimeout   time.Duration // ソースAPI呼び出しのタイムアウト
	AdapterPageSize  int           // 1ページあたりの取得件数（アダプター設定で上書き可）
	AdapterMaxPages  int           // 1回の同期で辿る最大ページ数
	AdapterRateRPS   float64       // ソースAPIへの秒間リクエスト上限

	// Alerts
	PriceCheckInterval time.Duration // 目標価格チェックの実行間隔
	DropAlertCooldown  time.Duration // ドロップアラートのクールダウン

	// Push
	PushEndpoint  string // プッシュ送信APIのエンドポイント
	PushBatchSize int    // 1リクエストあたりの最大通知数
	PushTimeout   time.Duration

	// Ops
	OpsPort string // health/metricsを提供するHTTPポート
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("required environment variable is not set: DATABASE_URL")
	}

	// Optional fields with defaults
	cfg.SyncTickInterval = getEnvDuration("SYNC_TICK_INTERVAL", 5*time.Minute)
	cfg.AdapterTimeout = getEnvDuration("ADAPTER_TIMEOUT", 15*time.Second)
	cfg.AdapterPageSize = getEnvInt("ADAPTER_PAGE_SIZE", 50)
	cfg.AdapterMaxPages = getEnvInt("ADAPTER_MAX_PAGES", 10)
	cfg.AdapterRateRPS = getEnvFloat("ADAPTER_RATE_RPS", 2.0)
	cfg.PriceCheckInterval = getEnvDuration("PRICE_CHECK_INTERVAL", 15*time.Minute)
	cfg.DropAlertCooldown = getEnvDuration("DROP_ALERT_COOLDOWN", time.Hour)
	cfg.PushEndpoint = getEnvString("PUSH_ENDPOINT", "https://exp.host/--/api/v2/push/send")
	cfg.PushBatchSize = getEnvInt("PUSH_BATCH_SIZE", 100)
	cfg.PushTimeout = getEnvDuration("PUSH_TIMEOUT", 10*time.Second)
	cfg.OpsPort = getEnvString("OPS_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
