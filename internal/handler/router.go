package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	RequestTimeout    time.Duration
	GuardPolicy       guard.Policy
	Metrics           metrics.MetricsCollector
	MetricsGatherer   prometheus.Gatherer // nilの場合は/metricsを公開しない

	// 認証
	AuthService AuthServiceInterface
	TokenStore  TokenStore

	// カタログ
	CatalogService CatalogServiceInterface

	// 画面
	PagesDir string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS
//	  /api/*  : Timeout → RateLimit(General) [→ RateLimit(Login)]
//	  画面    : RouteGuard
func NewRouter(deps *RouterDeps) http.Handler {
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, m))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.TokenStore, deps.Logger)
	productHandler := NewProductHandler(deps.CatalogService, deps.Logger)

	// --- 運用エンドポイント ---
	r.Get("/health", Health)
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		if deps.RequestTimeout > 0 {
			r.Use(chimw.Timeout(deps.RequestTimeout))
		}
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Post("/refresh", authHandler.Refresh)
			r.With(middleware.NewAccessTokenMiddleware(deps.TokenStore)).Get("/me", authHandler.Me)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/search", productHandler.Search)
			r.Get("/categories", productHandler.Categories)
			r.Get("/{id}", productHandler.Get)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			middleware.WriteErrorResponse(w, model.NewNotFoundError("Not found"))
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			middleware.WriteErrorResponse(w, &model.APIError{
				Kind:    model.KindValidation,
				Status:  http.StatusMethodNotAllowed,
				Message: "Method not allowed",
			})
		})
	})

	// --- 画面（ルートガード経由） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRouteGuardMiddleware(deps.GuardPolicy, deps.TokenStore, m, deps.Logger))
		r.Handle("/*", NewPagesHandler(deps.PagesDir))
	})

	return r
}
