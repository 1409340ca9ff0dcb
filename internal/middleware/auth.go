// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// accessTokenContextKey はリクエストコンテキストにアクセストークンを格納するためのキー。
var accessTokenContextKey = contextKey("access_token")

// NewAccessTokenMiddleware はCookieからアクセストークンを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// トークンが無いリクエストには401 {"message":"Unauthorized"} を返す。
// トークンの有効性は上流が判定するため、ここでは存在のみを確認する。
func NewAccessTokenMiddleware(reader token.Reader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accessToken, ok := reader.AccessToken(r)
			if !ok {
				WriteErrorResponse(w, model.NewAuthError("Unauthorized"))
				return
			}

			ctx := ContextWithAccessToken(r.Context(), accessToken)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessTokenFromContext はリクエストコンテキストからアクセストークンを取得する。
// アクセストークンミドルウェアを通過したリクエストでのみ有効。
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	accessToken, ok := ctx.Value(accessTokenContextKey).(string)
	if !ok || accessToken == "" {
		return "", false
	}
	return accessToken, true
}

// ContextWithAccessToken はコンテキストにアクセストークンを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAccessToken(ctx context.Context, accessToken string) context.Context {
	return context.WithValue(ctx, accessTokenContextKey, accessToken)
}
