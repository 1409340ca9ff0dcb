package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/catalog"
	"github.com/hitoshi/storefront/internal/config"
	"github.com/hitoshi/storefront/internal/database"
	"github.com/hitoshi/storefront/internal/gateway"
	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/handler"
	"github.com/hitoshi/storefront/internal/logger"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/security"
	"github.com/hitoshi/storefront/internal/shop"
	"github.com/hitoshi/storefront/internal/telemetry"
	"github.com/hitoshi/storefront/internal/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const (
	// shutdownTimeout はグレースフルシャットダウンの待ち時間。
	shutdownTimeout = 30 * time.Second
	// traceFlushTimeout は停止時に未送信スパンを送り切るまでの待ち時間。
	traceFlushTimeout = 5 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	log := logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, log, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// shop はBFFのクライアントとして動作し、サーバー側の設定を必要としない
	if cmd == CommandShop {
		return runShop(w, args[1:])
	}

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("upstream_url", cfg.UpstreamURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, log)
	default:
		return runServe(cfg, log)
	}
}

// Server はHTTPハンドラーと、停止時に解放するリソースをまとめたもの。
type Server struct {
	Handler http.Handler
	// MetricsHandler はMETRICS_PORT指定時に別ポートで公開する/metrics専用のハンドラー。
	// 未指定の場合はnilで、/metricsはHandler側で公開される。
	MetricsHandler http.Handler
	rateLimiter    *middleware.RateLimiter
	tracer         *sdktrace.TracerProvider
	log            *slog.Logger
}

// Close はバックグラウンドのリソースを解放し、未送信のスパンをフラッシュする。
func (s *Server) Close() {
	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), traceFlushTimeout)
	defer cancel()
	if err := s.tracer.Shutdown(ctx); err != nil {
		s.log.Warn("failed to shut down tracer provider", slog.String("error", err.Error()))
	}
}

// NewServer は設定から全依存関係をワイヤリングしたServerを構築する。
// regがnilの場合は新しいレジストリを作成する。
func NewServer(cfg *config.Config, log *slog.Logger, reg *prometheus.Registry) (*Server, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	collector := metrics.NewCollector(reg)

	// 0. トレーシング（受信したtraceparentを上流呼び出しへ引き継ぐ）
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRatio:  cfg.TraceSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	propagator := telemetry.Propagator()

	// 1. Token Store
	tokens := token.NewCookieStore(token.Config{
		Secure:        cfg.CookieSecure,
		Domain:        cfg.CookieDomain,
		AccessMaxAge:  cfg.AccessTokenMaxAge,
		RefreshMaxAge: cfg.RefreshTokenMaxAge,
	})

	// 2. 上流ゲートウェイ
	gw := gateway.NewClient(gateway.NewHTTPClient(cfg.UpstreamTimeout, tp, propagator), log, collector, gateway.Config{
		BaseURL:            cfg.UpstreamURL,
		BreakerMaxFailures: cfg.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.BreakerOpenTimeout,
	})

	// 3. ドメインサービス
	authService := auth.NewService(gw, log, collector)
	catalogService := catalog.NewService(gw, security.NewTextSanitizer(), log)

	// 4. ルーター（configのRateLimit*はreq/min単位）
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin),
		log,
	)

	var gatherer prometheus.Gatherer = reg
	var metricsHandler http.Handler
	if cfg.MetricsPort != "" {
		gatherer = nil
		metricsHandler = metrics.SetupMetricsRoute(reg)
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		RequestTimeout:    cfg.RequestTimeout,
		GuardPolicy:       guard.DefaultPolicy(),
		Metrics:           collector,
		MetricsGatherer:   gatherer,
		AuthService:       authService,
		TokenStore:        tokens,
		CatalogService:    catalogService,
		PagesDir:          cfg.PagesDir,
	})

	traced := otelhttp.NewHandler(router, telemetry.ServiceName,
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithPropagators(propagator),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		// ヘルスチェックとスクレイプはトレースしない
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	)

	return &Server{
		Handler:        traced,
		MetricsHandler: metricsHandler,
		rateLimiter:    rateLimiter,
		tracer:         tp,
		log:            log,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, log *slog.Logger) error {
	srv, err := NewServer(cfg, log, nil)
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers := []*http.Server{server}
	if srv.MetricsHandler != nil {
		servers = append(servers, &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           srv.MetricsHandler,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, s := range servers {
		go func() {
			log.Info("HTTP server starting", slog.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var listenErr error
	select {
	case listenErr = <-errCh:
		log.Error("server listen error", slog.String("error", listenErr.Error()))
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
	}
	if listenErr != nil {
		return fmt.Errorf("server listen error: %w", listenErr)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runMigrate はPostgreSQLストレージのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	if cfg.StorageURL == "" {
		return errors.New("STORAGE_URL is required for migrate")
	}

	log.Info("running storage migrations",
		slog.String("storage_url", maskStorageURL(cfg.StorageURL)),
	)

	version, err := database.RunMigrations(cfg.StorageURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("storage migrations completed successfully", slog.Uint64("schema_version", uint64(version)))
	return nil
}

// runShop は端末向けのストアフロントクライアントを実行する。
// ログは標準エラー出力へ、LOG_LEVELが未設定の場合はwarn以上のみ出力する。
func runShop(w io.Writer, args []string) error {
	level := slog.LevelWarn
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = logger.ParseLevel(v)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return shop.Run(ctx, args, shop.Options{
		Stdout: w,
		Stderr: os.Stderr,
		Logger: logger.Setup(os.Stderr, level),
	})
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskStorageURL はストレージURLのパスワードをマスクする。
func maskStorageURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
