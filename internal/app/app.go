package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/bptogether/internal/access"
	"github.com/hitoshi/bptogether/internal/auth"
	"github.com/hitoshi/bptogether/internal/config"
	"github.com/hitoshi/bptogether/internal/database"
	"github.com/hitoshi/bptogether/internal/handler"
	"github.com/hitoshi/bptogether/internal/logger"
	"github.com/hitoshi/bptogether/internal/metrics"
	"github.com/hitoshi/bptogether/internal/middleware"
	"github.com/hitoshi/bptogether/internal/notification"
	"github.com/hitoshi/bptogether/internal/reading"
	"github.com/hitoshi/bptogether/internal/repository"
	"github.com/hitoshi/bptogether/internal/security"
	"github.com/hitoshi/bptogether/internal/settings"
	"github.com/hitoshi/bptogether/internal/share"
	"github.com/hitoshi/bptogether/internal/threshold"
	"github.com/hitoshi/bptogether/internal/user"
	"github.com/hitoshi/bptogether/internal/worker"
	"github.com/hitoshi/bptogether/internal/worker/cleanup"
	"github.com/hitoshi/bptogether/internal/worker/reminder"
)

// shutdownTimeout はグレースフルシャットダウンの最大待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. LOG_LEVELを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
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
		slog.String("port", cfg.ServerPort),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, false)
	case CommandRunOnce:
		return runWorker(ctx, cfg, true)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newFirebaseApp はConfigの資格情報でFirebaseアプリを初期化する。
// 資格情報が未設定の場合はApplication Default Credentialsを使用する。
func newFirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	return auth.NewFirebaseApp(ctx, auth.FirebaseConfig{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsJSON: cfg.FirebaseAccount,
	})
}

// newPushProvider はFirebaseアプリからFCMのPushProviderを生成する。
// appがnilの場合はログ出力のみのPushProviderを返す。
func newPushProvider(ctx context.Context, app *firebase.App) (notification.PushProvider, error) {
	if app == nil {
		slog.Warn("Firebaseが未設定のため、プッシュ通知はログ出力のみになります")
		return &notification.LogProvider{Logger: slog.Default()}, nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging client: %w", err)
	}
	return notification.NewFCMProvider(client), nil
}

// newMetrics はプロセス共通のメトリクスを登録したレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	readingRepo := repository.NewPostgresReadingRepo(db)
	settingRepo := repository.NewPostgresSettingRepo(db)
	codeRepo := repository.NewPostgresShareCodeRepo(db)
	accessRepo := repository.NewPostgresSharedAccessRepo(db)
	tokenRepo := repository.NewPostgresDeviceTokenRepo(db)

	// 3. メトリクス
	reg, mc := newMetrics()

	// 4. Firebase（IDトークン検証とFCM）
	fbApp, err := newFirebaseApp(ctx, cfg)
	if err != nil {
		return err
	}
	idp, err := auth.NewFirebaseIdentityProviderFromApp(ctx, fbApp)
	if err != nil {
		return err
	}
	provider, err := newPushProvider(ctx, fbApp)
	if err != nil {
		return err
	}

	// 5. ドメインサービスの初期化
	log := slog.Default()
	fanout := notification.NewFanout(provider, log, mc)
	deviceService := notification.NewService(tokenRepo, accessRepo, provider, fanout, log)
	alerter := threshold.NewAlerter(settingRepo, fanout, log, cfg.NotifyTimeout)
	checker := access.NewChecker(accessRepo)

	userService := user.NewService(userRepo, idp, security.NewTextSanitizer(0), log)
	authService := auth.NewService(idp, userService, log)
	readingService := reading.NewService(readingRepo, checker, userRepo, alerter, log)
	settingsService := settings.NewService(settingRepo, log)
	shareService := share.NewService(codeRepo, accessRepo, tokenRepo, fanout, mc, log)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitRedeem),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            log,
		Metrics:           mc,
		HealthChecker:     db,
		MetricsHandler:    metrics.Handler(reg),

		RecordService:   readingService,
		SettingsService: settingsService,
		DeviceService:   deviceService,
		ShareService:    shareService,
		UserService:     userService,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 送信中の異常値通知を待つ
	alerter.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れ共有コードの削除とリマインダーチェックをcron式に従って定期実行する。
// onceがtrueの場合は1回だけ実行して終了する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config, once bool) error {
	// 1. DB接続
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// 2. リポジトリの初期化
	readingRepo := repository.NewPostgresReadingRepo(db)
	settingRepo := repository.NewPostgresSettingRepo(db)
	codeRepo := repository.NewPostgresShareCodeRepo(db)

	// 3. 通知基盤の初期化
	// 常駐ワーカーのみメトリクスを公開する。run-onceは結果をログで確認する。
	var mc metrics.MetricsCollector = metrics.Nop{}
	if !once {
		reg, collector := newMetrics()
		mc = collector
		metricsServer := metrics.NewServer(":"+cfg.MetricsPort, reg)
		go func() {
			slog.Info("worker metrics server starting", slog.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("worker metrics server failed", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slog.Error("worker metrics server shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	var fbApp *firebase.App
	if cfg.FirebaseAccount != "" || cfg.FirebaseProjectID != "" {
		if fbApp, err = newFirebaseApp(ctx, cfg); err != nil {
			return err
		}
	}
	provider, err := newPushProvider(ctx, fbApp)
	if err != nil {
		return err
	}
	log := slog.Default()
	fanout := notification.NewFanout(provider, log, mc)

	// 4. 分散ロック（REDIS_URLが未設定の場合はロックしない）
	var locker worker.Locker = worker.NopLocker{}
	if cfg.RedisURL != "" {
		client, err := worker.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = worker.NewRedisLocker(client, log)
	}

	// 5. ジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(codeRepo, log, mc)
	scanner := reminder.NewScanner(settingRepo, readingRepo, fanout, mc, log, reminder.Config{
		Location:       loc,
		Granularity:    cfg.ReminderGranularity,
		MaxConcurrency: cfg.ReminderMaxConcurrent,
	})

	scheduler := worker.NewScheduler(cfg.ReminderSchedule, loc, []worker.Task{
		{Name: "share_code_cleanup", Run: cleanupJob.Run},
		{Name: "reminder_scan", Run: scanner.RunOnce},
	}, locker, log)

	if once {
		slog.Info("running scheduled tasks once")
		scheduler.RunOnce(ctx)
		return nil
	}

	slog.Info("worker starting",
		slog.String("schedule", cfg.ReminderSchedule),
		slog.String("timezone", loc.String()),
		slog.Int("max_concurrent", cfg.ReminderMaxConcurrent),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler failed: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
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
