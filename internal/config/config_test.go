package config

import (
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("BASE_URL", "http://localhost:8080")
	t.Setenv("APP_ENV", "")
	t.Setenv("UPSTREAM_URL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "http://localhost:8080")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Upstream defaults
	if cfg.UpstreamURL != "https://dummyjson.com" {
		t.Errorf("UpstreamURL = %q, want %q", cfg.UpstreamURL, "https://dummyjson.com")
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, 10*time.Second)
	}
	if cfg.BreakerMaxFailures != 5 {
		t.Errorf("BreakerMaxFailures = %d, want %d", cfg.BreakerMaxFailures, 5)
	}
	if cfg.BreakerOpenTimeout != 30*time.Second {
		t.Errorf("BreakerOpenTimeout = %v, want %v", cfg.BreakerOpenTimeout, 30*time.Second)
	}

	// Token cookie defaults
	if cfg.AccessTokenMaxAge != 7*24*time.Hour {
		t.Errorf("AccessTokenMaxAge = %v, want %v", cfg.AccessTokenMaxAge, 7*24*time.Hour)
	}
	if cfg.RefreshTokenMaxAge != 30*24*time.Hour {
		t.Errorf("RefreshTokenMaxAge = %v, want %v", cfg.RefreshTokenMaxAge, 30*24*time.Hour)
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should be false for http BASE_URL")
	}

	// Rate limit defaults
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 120)
	}
	if cfg.RateLimitLogin != 10 {
		t.Errorf("RateLimitLogin = %d, want %d", cfg.RateLimitLogin, 10)
	}

	// Server defaults
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, 30*time.Second)
	}
	if cfg.PagesDir != "web" {
		t.Errorf("PagesDir = %q, want %q", cfg.PagesDir, "web")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.MetricsPort != "" {
		t.Errorf("MetricsPort = %q, want empty", cfg.MetricsPort)
	}
	if cfg.OTLPEndpoint != "" {
		t.Errorf("OTLPEndpoint = %q, want empty", cfg.OTLPEndpoint)
	}
	if cfg.TraceSampleRatio != 1 {
		t.Errorf("TraceSampleRatio = %v, want 1", cfg.TraceSampleRatio)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)

	t.Setenv("UPSTREAM_URL", "http://catalog.internal:9000/")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("BREAKER_MAX_FAILURES", "2")
	t.Setenv("ACCESS_TOKEN_MAX_AGE", "1h")
	t.Setenv("REFRESH_TOKEN_MAX_AGE", "48h")
	t.Setenv("RATE_LIMIT_GENERAL", "60")
	t.Setenv("RATE_LIMIT_LOGIN", "5")
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("COOKIE_DOMAIN", "shop.example.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("METRICS_PORT", "9090")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://otel-collector:4318")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.UpstreamURL != "http://catalog.internal:9000" {
		t.Errorf("UpstreamURL = %q, want trailing slash trimmed", cfg.UpstreamURL)
	}
	if cfg.UpstreamTimeout != 3*time.Second {
		t.Errorf("UpstreamTimeout = %v, want %v", cfg.UpstreamTimeout, 3*time.Second)
	}
	if cfg.BreakerMaxFailures != 2 {
		t.Errorf("BreakerMaxFailures = %d, want %d", cfg.BreakerMaxFailures, 2)
	}
	if cfg.AccessTokenMaxAge != time.Hour {
		t.Errorf("AccessTokenMaxAge = %v, want %v", cfg.AccessTokenMaxAge, time.Hour)
	}
	if cfg.RefreshTokenMaxAge != 48*time.Hour {
		t.Errorf("RefreshTokenMaxAge = %v, want %v", cfg.RefreshTokenMaxAge, 48*time.Hour)
	}
	if cfg.RateLimitGeneral != 60 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 60)
	}
	if cfg.RateLimitLogin != 5 {
		t.Errorf("RateLimitLogin = %d, want %d", cfg.RateLimitLogin, 5)
	}
	if cfg.ServerPort != "3000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "3000")
	}
	if cfg.CookieDomain != "shop.example.com" {
		t.Errorf("CookieDomain = %q, want %q", cfg.CookieDomain, "shop.example.com")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.MetricsPort != "9090" {
		t.Errorf("MetricsPort = %q, want %q", cfg.MetricsPort, "9090")
	}
	if cfg.OTLPEndpoint != "http://otel-collector:4318" {
		t.Errorf("OTLPEndpoint = %q", cfg.OTLPEndpoint)
	}
	if cfg.TraceSampleRatio != 0.25 {
		t.Errorf("TraceSampleRatio = %v, want 0.25", cfg.TraceSampleRatio)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("UPSTREAM_TIMEOUT", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.UpstreamTimeout != 10*time.Second {
		t.Errorf("UpstreamTimeout = %v, want default %v", cfg.UpstreamTimeout, 10*time.Second)
	}
}

func TestLoad_HTTPSBaseURL_EnablesSecureCookie(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("BASE_URL", "https://shop.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should be true for https BASE_URL")
	}
}

func TestLoad_ProductionEnv_EnablesSecureCookie(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should be true when APP_ENV=production")
	}
}

func TestLoad_MissingBaseURL_ReturnsError(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("BASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing BASE_URL, got nil")
	}
}

func TestLoad_RelativeUpstreamURL_ReturnsError(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("UPSTREAM_URL", "dummyjson.com")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for relative UPSTREAM_URL, got nil")
	}
}
