package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/guard"
	"github.com/hitoshi/storefront/internal/token"
)

// DecisionRecorder はルートガードの判定結果の記録先。
type DecisionRecorder interface {
	RecordRouteDecision(decision string)
}

// NewRouteGuardMiddleware はページ表示前にルートガードを評価するミドルウェアを返す。
// 静的アセットは評価せずに通す。リダイレクトは307で応答する。
// トークンは存在のみを見る。期限切れCookieはブラウザが送らないため、存在しないものとして扱われる。
func NewRouteGuardMiddleware(policy guard.Policy, reader token.Reader, recorder DecisionRecorder, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if guard.IsStaticAsset(path) {
				next.ServeHTTP(w, r)
				return
			}

			_, hasToken := reader.AccessToken(r)
			decision := policy.Decide(path, hasToken)
			if recorder != nil {
				recorder.RecordRouteDecision(decision.String())
			}

			var target string
			switch decision {
			case guard.RedirectToLogin:
				target = guard.LoginPath
			case guard.RedirectToProducts:
				target = guard.ProductsPath
			default:
				next.ServeHTTP(w, r)
				return
			}

			logger.Debug("route guard redirect",
				slog.String("path", path),
				slog.String("decision", decision.String()),
			)
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		})
	}
}
