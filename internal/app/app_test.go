package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	t.Setenv("BASE_URL", "http://localhost:8080")
	t.Setenv("UPSTREAM_URL", "https://dummyjson.com")

	var buf bytes.Buffer
	cfg, log, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil || log == nil {
		t.Fatal("expected non-nil config and logger")
	}

	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q, want http://localhost:8080", cfg.BaseURL)
	}

	// slogのグローバルロガーがJSON出力に設定されていることを確認
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
	if entry["service"] != "storefront" {
		t.Errorf("service = %q, want storefront", entry["service"])
	}
}

func TestInit_RespectsLogLevel(t *testing.T) {
	t.Setenv("BASE_URL", "http://localhost:8080")
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	_, log, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info log suppressed at warn level, got %q", buf.String())
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	t.Setenv("BASE_URL", "")

	var buf bytes.Buffer
	cfg, _, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestMaskStorageURL(t *testing.T) {
	got := maskStorageURL("postgres://user:secret@db:5432/storefront?sslmode=disable")
	if bytes.Contains([]byte(got), []byte("secret")) {
		t.Errorf("password leaked: %q", got)
	}
	if got != "postgres://user:xxxxx@db:5432/storefront?sslmode=disable" {
		t.Errorf("maskStorageURL = %q", got)
	}
}
