package middleware

import (
	"net/http"
	"strings"
)

// corsAllowedHeaders はクロスオリジンの画面から送られるリクエストヘッダー。
// クライアントSDKはリクエストIDを、計装済みの画面はW3C Trace Contextを付与する。
var corsAllowedHeaders = strings.Join([]string{
	"Content-Type",
	"X-Request-Id",
	"traceparent",
	"tracestate",
}, ", ")

// NewCORSMiddleware は指定されたオリジンに対するCORSミドルウェアを返す。
// トークンはCookieで運ぶため資格情報付きで許可し、Originが一致したリクエストにのみ許可ヘッダーを返す。
// allowedOriginが空の場合は何もしない（同一オリジン運用）。
// OPTIONSプリフライトは後続に渡さず204で応答する。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	allowedOrigin = strings.TrimSuffix(allowedOrigin, "/")
	return func(next http.Handler) http.Handler {
		if allowedOrigin == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if r.Header.Get("Origin") == allowedOrigin {
				h.Set("Access-Control-Allow-Origin", allowedOrigin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", "X-Request-Id")
				if r.Method == http.MethodOptions {
					h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
					h.Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
