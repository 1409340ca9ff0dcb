package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort     string
	BaseURL        string
	RequestTimeout time.Duration
	PagesDir       string

	// Upstream (カタログ/認証ゲートウェイ)
	UpstreamURL        string
	UpstreamTimeout    time.Duration
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration

	// Token cookie
	AccessTokenMaxAge  time.Duration
	RefreshTokenMaxAge time.Duration
	CookieSecure       bool
	CookieDomain       string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitLogin   int

	// CORS
	CORSAllowedOrigin string

	// Storage（migrateサブコマンド用）
	StorageURL string

	// Logging
	LogLevel string

	// Metrics（空の場合はAPIと同じポートの/metricsで公開する）
	MetricsPort string

	// Tracing（OTLPEndpointが空の場合はエクスポートしない）
	OTLPEndpoint     string
	TraceSampleRatio float64
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	cfg.PagesDir = getEnvString("PAGES_DIR", "web")
	cfg.UpstreamURL = strings.TrimRight(getEnvString("UPSTREAM_URL", "https://dummyjson.com"), "/")
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 10*time.Second)
	cfg.BreakerMaxFailures = getEnvInt("BREAKER_MAX_FAILURES", 5)
	cfg.BreakerOpenTimeout = getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second)
	cfg.AccessTokenMaxAge = getEnvDuration("ACCESS_TOKEN_MAX_AGE", 7*24*time.Hour)
	cfg.RefreshTokenMaxAge = getEnvDuration("REFRESH_TOKEN_MAX_AGE", 30*24*time.Hour)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://") || os.Getenv("APP_ENV") == "production"
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.StorageURL = getEnvString("STORAGE_URL", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "")
	cfg.OTLPEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.TraceSampleRatio = getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1.0)

	// UPSTREAM_URLは絶対URLでなければならない
	u, err := url.Parse(cfg.UpstreamURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("UPSTREAM_URL must be an absolute URL: %q", cfg.UpstreamURL)
	}

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
