// Package guard はページ遷移前に評価するルートガードの判定ロジックを提供する。
// 判定は（リクエストパス, 有効なアクセストークンの有無）の純粋関数で、エラーを返さない。
package guard

import (
	"regexp"
	"strings"
)

// Decision はルートガードの判定結果。
type Decision int

const (
	// Allow はそのままページを表示する。
	Allow Decision = iota
	// RedirectToLogin はログインページへリダイレクトする。
	RedirectToLogin
	// RedirectToProducts は商品一覧ページへリダイレクトする。
	RedirectToProducts
)

// String はメトリクスラベルとログ用の表現を返す。
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToProducts:
		return "redirect_products"
	default:
		return "unknown"
	}
}

// 既定のルート
const (
	HomePath     = "/"
	LoginPath    = "/login"
	ProductsPath = "/products"
)

// Policy はルートの分類表とリダイレクト先を保持する。
type Policy struct {
	Protected []string // トークン必須のルート
	Auth      []string // 認証済みなら離れるべきルート
	Public    []string // トークン不要のルート。"/" は完全一致のみ
}

// DefaultPolicy はストアフロントの既定ポリシーを返す。
func DefaultPolicy() Policy {
	return Policy{
		Protected: []string{"/products", "/cart", "/profile"},
		Auth:      []string{LoginPath},
		Public:    []string{HomePath, LoginPath},
	}
}

// Decide はパスとトークン有無からページ遷移の可否を判定する。
//
//	token | path class | result
//	no    | public     | allow
//	no    | protected  | redirect-to-login
//	no    | auth       | allow
//	yes   | auth       | redirect-to-products
//	yes   | protected  | allow
//	yes   | その他     | allow
func (p Policy) Decide(path string, hasToken bool) Decision {
	isProtected := matchesAny(path, p.Protected)
	isAuth := matchesAny(path, p.Auth)
	isPublic := matchesPublic(path, p.Public)

	if !hasToken {
		switch {
		case isPublic:
			return Allow
		case isProtected:
			return RedirectToLogin
		default:
			return Allow
		}
	}

	if isAuth {
		return RedirectToProducts
	}
	return Allow
}

// Decide は既定ポリシーで判定する。
func Decide(path string, hasToken bool) Decision {
	return DefaultPolicy().Decide(path, hasToken)
}

// matchesRoute はpathがrouteと完全一致するか、route + "/" で始まるかを返す。
func matchesRoute(path, route string) bool {
	return path == route || strings.HasPrefix(path, route+"/")
}

func matchesAny(path string, routes []string) bool {
	for _, route := range routes {
		if matchesRoute(path, route) {
			return true
		}
	}
	return false
}

func matchesPublic(path string, routes []string) bool {
	for _, route := range routes {
		if route == HomePath {
			if path == HomePath {
				return true
			}
			continue
		}
		if matchesRoute(path, route) {
			return true
		}
	}
	return false
}

// assetPrefixes はガード対象外の静的アセット配信パス。
var assetPrefixes = []string{"/assets/", "/static/"}

// staticExtPattern はガード対象外の静的ファイル拡張子の許可リスト。
// .json は対象外（APIレスポンスやマニフェスト以外のJSONはページとして扱う）。
var staticExtPattern = regexp.MustCompile(`(?i)\.(?:html?|css|js|jpe?g|png|webp|gif|svg|ttf|woff2?|ico|csv|docx?|xlsx?|zip|webmanifest)$`)

// IsStaticAsset はpathがアセットまたは静的ファイルでルートガードを通さないかどうかを返す。
// /api/ 配下は常にガード対象とする。
func IsStaticAsset(path string) bool {
	if strings.HasPrefix(path, "/api/") {
		return false
	}
	for _, prefix := range assetPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return staticExtPattern.MatchString(path)
}
