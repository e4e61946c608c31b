package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kicksync/internal/adapter"
	"github.com/hitoshi/kicksync/internal/alert"
	"github.com/hitoshi/kicksync/internal/catalog"
	"github.com/hitoshi/kicksync/internal/config"
	"github.com/hitoshi/kicksync/internal/database"
	"github.com/hitoshi/kicksync/internal/logger"
	"github.com/hitoshi/kicksync/internal/metrics"
	"github.com/hitoshi/kicksync/internal/notify"
	"github.com/hitoshi/kicksync/internal/repository"
	"github.com/hitoshi/kicksync/internal/security"
	"github.com/hitoshi/kicksync/internal/worker/cleanup"
	syncpkg "github.com/hitoshi/kicksync/internal/worker/sync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("OPS_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("ops_port", cfg.OpsPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runWorker(cfg)
	}
}

// runWorker は同期ワーカーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、同期スケジューラと
// 価格チェックジョブ、ops用HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	productRepo := repository.NewPostgresProductRepo(db)
	vendorRepo := repository.NewPostgresVendorRepo(db)
	vendorPriceRepo := repository.NewPostgresVendorPriceRepo(db)
	priceAlertRepo := repository.NewPostgresPriceAlertRepo(db)
	dropAlertRepo := repository.NewPostgresDropAlertRepo(db)
	sourceRepo := repository.NewPostgresFeedSourceRepo(db)

	// 3. セキュリティサービスの初期化
	guard := security.NewOutboundGuard()
	sanitizer := security.NewDescriptionSanitizer()

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ソースアダプターの登録
	adapterOpts := adapter.Options{
		Timeout:         cfg.AdapterTimeout,
		DefaultPageSize: cfg.AdapterPageSize,
		DefaultMaxPages: cfg.AdapterMaxPages,
		RequestsPerSec:  cfg.AdapterRateRPS,
	}
	adapters := adapter.NewRegistry()
	adapters.Register(adapter.TypeKicksAPI, adapter.NewKicksAPIAdapter(guard, slog.Default(), adapterOpts))
	adapters.Register(adapter.TypeRetailFeed, adapter.NewRetailFeedAdapter(guard, slog.Default(), adapterOpts))
	adapters.Register(adapter.TypeReleaseRSS, adapter.NewReleaseRSSAdapter(guard, slog.Default(), adapterOpts))

	// 6. 通知ディスパッチャーの初期化
	expoClient := notify.NewExpoClient(
		&http.Client{Timeout: cfg.PushTimeout},
		slog.Default(),
		cfg.PushEndpoint,
	)
	dispatcher := notify.NewDispatcher(expoClient, slog.Default(), cfg.PushBatchSize)

	// 7. パイプラインの組み立て
	reconciler := catalog.NewReconciler(productRepo, vendorRepo, vendorPriceRepo, sanitizer, slog.Default())
	matcher := alert.NewMatcher(productRepo, dropAlertRepo, dispatcher, collector, cfg.DropAlertCooldown, slog.Default())
	runner := syncpkg.NewRunner(adapters, reconciler, matcher, collector, slog.Default())
	scheduler := syncpkg.NewScheduler(sourceRepo, runner, collector, slog.Default())
	priceChecker := alert.NewPriceChecker(priceAlertRepo, dispatcher, collector, cfg.PriceCheckInterval, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// 8. ops用HTTPサーバー（health/metrics）の起動
	opsServer := newOpsServer(cfg.OpsPort, db, registry)
	go func() {
		slog.Info("ops server starting", slog.String("addr", opsServer.Addr))
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ops server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("sync_tick_interval", cfg.SyncTickInterval),
		slog.Duration("price_check_interval", cfg.PriceCheckInterval),
		slog.Duration("drop_alert_cooldown", cfg.DropAlertCooldown),
	)

	// 価格チェックジョブをバックグラウンドで起動
	go priceChecker.Start(ctx)

	// アラート履歴クリーンアップジョブを日次でバックグラウンド実行
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 同期スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SyncTickInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("ops server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// pinger はDB疎通確認のインターフェース。
type pinger interface {
	PingContext(ctx context.Context) error
}

// newOpsServer はhealth/metricsを提供するHTTPサーバーを構築する。
func newOpsServer(port string, db pinger, gatherer prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler(gatherer))

	return &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
