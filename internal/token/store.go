// Package token はアクセストークンとリフレッシュトークンをHTTP Only Cookieに保持する
// Token Storeを提供する。
//
// トークンはページスクリプトから読み取れない場所（HttpOnly Cookie）に置かれ、
// 同一オリジンへのリクエストでブラウザが自動的に送り返す。
// 呼び出し側がヘッダーへ手動で付与することはない。
package token

import (
	"errors"
	"net/http"
	"time"
)

const (
	// AccessTokenCookie はアクセストークンを保持するCookie名。
	AccessTokenCookie = "accessToken"
	// RefreshTokenCookie はリフレッシュトークンを保持するCookie名。
	RefreshTokenCookie = "refreshToken"

	// DefaultAccessMaxAge はアクセストークンの既定有効期間（7日）。
	DefaultAccessMaxAge = 7 * 24 * time.Hour
	// DefaultRefreshMaxAge はリフレッシュトークンの既定有効期間（30日）。
	DefaultRefreshMaxAge = 30 * 24 * time.Hour
)

// ErrEmptyToken は空のトークンを保存しようとした場合のエラー。
var ErrEmptyToken = errors.New("token must not be empty")

// Config はCookieStoreの設定。
type Config struct {
	Secure        bool   // ローカル開発以外ではtrue
	Domain        string // 空の場合はホスト限定Cookie
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

// Reader はリクエストからトークンを読み取るインターフェース。
// ルートガードや認証ミドルウェアはこの部分集合のみに依存する。
type Reader interface {
	AccessToken(r *http.Request) (string, bool)
	RefreshToken(r *http.Request) (string, bool)
}

// CookieStore はトークンをCookieで保持するToken Store。
// 状態を持たないため、複数goroutineから同時に使用できる。
type CookieStore struct {
	config Config
}

// NewCookieStore はCookieStoreを生成する。
// 有効期間が未設定（0以下）の場合は既定値を使う。
func NewCookieStore(config Config) *CookieStore {
	if config.AccessMaxAge <= 0 {
		config.AccessMaxAge = DefaultAccessMaxAge
	}
	if config.RefreshMaxAge <= 0 {
		config.RefreshMaxAge = DefaultRefreshMaxAge
	}
	return &CookieStore{config: config}
}

// SetTokens は2つのトークンをそれぞれの有効期間で保存する。
// 既存の組は上書きされる。どちらかが空の場合は何も書き込まずにエラーを返す。
func (s *CookieStore) SetTokens(w http.ResponseWriter, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return ErrEmptyToken
	}

	http.SetCookie(w, s.cookie(AccessTokenCookie, accessToken, s.config.AccessMaxAge))
	http.SetCookie(w, s.cookie(RefreshTokenCookie, refreshToken, s.config.RefreshMaxAge))
	return nil
}

// AccessToken は保存されたアクセストークンを返す。
// 未設定または期限切れ（ブラウザが送信しない）の場合はfalseを返す。
func (s *CookieStore) AccessToken(r *http.Request) (string, bool) {
	return readCookie(r, AccessTokenCookie)
}

// RefreshToken は保存されたリフレッシュトークンを返す。
func (s *CookieStore) RefreshToken(r *http.Request) (string, bool) {
	return readCookie(r, RefreshTokenCookie)
}

// ClearTokens は両方のCookieを削除する。未設定でもエラーにならない。
func (s *CookieStore) ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := s.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (s *CookieStore) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.config.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func readCookie(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
