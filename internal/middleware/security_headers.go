package middleware

import (
	"net/http"
	"strings"
)

// BFFのJSONは何も読み込まず、埋め込まれることもない
const apiContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"

// 商品画像は上流CDNから読み込むため、imgのみ外部httpsとdata URLを許可する
const pageContentSecurityPolicy = "default-src 'self'; img-src 'self' https: data:; connect-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// /api/ 配下はユーザー情報を含み得るため、キャッシュも禁止する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=(), payment=()")

			if isAPIPath(r.URL.Path) {
				h.Set("Content-Security-Policy", apiContentSecurityPolicy)
				h.Set("Cache-Control", "no-store")
			} else {
				h.Set("Content-Security-Policy", pageContentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}
