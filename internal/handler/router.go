package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/bptogether/internal/metrics"
	"github.com/hitoshi/bptogether/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 認証不要のエンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	RecordService   RecordServiceInterface
	SettingsService SettingsServiceInterface
	DeviceService   DeviceServiceInterface
	ShareService    ShareServiceInterface
	UserService     UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Logging → Recovery → SecurityHeaders → CORS → Auth → RateLimit(General)
//
// Recoveryをログの内側に置き、panicによる500もリクエストログとメトリクスに記録する。
//
// /health と /metrics は認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	recordHandler := NewRecordHandler(deps.RecordService)
	settingsHandler := NewSettingsHandler(deps.SettingsService, deps.DeviceService)
	shareHandler := NewShareHandler(deps.ShareService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 測定記録
		r.Route("/api/records", func(r chi.Router) {
			r.Post("/", recordHandler.Create)
			r.Get("/", recordHandler.List)
			r.Post("/bulk", recordHandler.BulkCreate)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", recordHandler.Update)
				r.Delete("/", recordHandler.Delete)
			})
		})

		// 通知設定とデバイストークン
		r.Route("/api/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/", settingsHandler.Update)
			r.Post("/device", settingsHandler.RegisterDevice)
			r.Delete("/device", settingsHandler.UnregisterDevice)
			r.Get("/device-status", settingsHandler.DeviceStatus)
		})

		// 共有
		r.Route("/api/share", func(r chi.Router) {
			r.Post("/generate", shareHandler.Generate)
			// POST /api/share/redeem - コードの総当たりを防ぐため専用のレート制限を追加
			r.With(deps.RateLimiter.RedeemMiddleware()).Post("/redeem", shareHandler.Redeem)
			r.Get("/shared-with-me", shareHandler.SharedWithMe)
			r.Get("/shared-by-me", shareHandler.SharedByMe)

			r.Route("/{otherId}", func(r chi.Router) {
				r.Delete("/", shareHandler.Remove)
				r.Put("/notifications", shareHandler.ToggleNotifications)
			})
		})

		// ユーザー
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/", userHandler.Withdraw)
			r.Post("/terms", userHandler.AcceptTerms)
			r.Get("/me", userHandler.Me)
		})
	})

	return r
}
