// Package client はストアフロントBFFを呼び出すクライアントSDKを提供する。
// 全てのリクエストはRefreshRetrierを経由し、アクセストークン失効時は透過的にリフレッシュして再送する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/storefront/internal/model"
	"golang.org/x/net/publicsuffix"
)

const (
	// RequestIDHeader はリクエストIDを運ぶヘッダー。
	// 再送時も同じ値を使うため、サーバーのログで元のリクエストと紐付けられる。
	RequestIDHeader = "X-Request-Id"

	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 4 << 20
)

// BFFのエンドポイント
const (
	pathLogin      = "/api/auth/login"
	pathLogout     = "/api/auth/logout"
	pathMe         = "/api/auth/me"
	pathRefresh    = "/api/auth/refresh"
	pathProducts   = "/api/products"
	pathSearch     = "/api/products/search"
	pathCategories = "/api/products/categories"
)

// HTTPError はBFFが2xx以外を返したことを表す。
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// IsUnauthorized はerrが401のHTTPErrorかどうかを返す。
func IsUnauthorized(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusUnauthorized
}

// Options はClientの生成オプション。
type Options struct {
	// HTTPClient がnilの場合はCookie Jar付きのクライアントを生成する。
	// 指定する場合はJarを設定しておくこと。
	HTTPClient         *http.Client
	Navigator          Navigator
	Logger             *slog.Logger
	NoRefreshEndpoints []string
	Timeout            time.Duration
}

// Client はBFFのクライアント。
type Client struct {
	baseURL string
	base    *url.URL
	raw     *http.Client
	doer    Doer
	logger  *slog.Logger
}

// New はbaseURLのBFFを呼び出すClientを生成する。
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Jar: jar, Timeout: timeout}
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		base:    u,
		raw:     httpClient,
		logger:  logger,
	}
	c.doer = NewRefreshRetrier(httpClient, RetrierConfig{
		Refresh:            c.RefreshToken,
		Navigator:          opts.Navigator,
		NoRefreshEndpoints: opts.NoRefreshEndpoints,
		Logger:             logger,
	})
	return c, nil
}

// SessionCookie はプロセスをまたいで保持するCookieの名前と値。
type SessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session はJarに保存されているBFFのCookieを返す。Jarがない場合はnil。
func (c *Client) Session() []SessionCookie {
	if c.raw.Jar == nil {
		return nil
	}
	var out []SessionCookie
	for _, ck := range c.raw.Jar.Cookies(c.base) {
		out = append(out, SessionCookie{Name: ck.Name, Value: ck.Value})
	}
	return out
}

// RestoreSession はSessionで取り出したCookieをJarに戻す。
func (c *Client) RestoreSession(cookies []SessionCookie) {
	if c.raw.Jar == nil || len(cookies) == 0 {
		return
	}
	hc := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		hc = append(hc, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: "/"})
	}
	c.raw.Jar.SetCookies(c.base, hc)
}

// Login は認証情報でログインし、ユーザー情報を返す。
// トークンはCookieとしてJarに保存される。
func (c *Client) Login(ctx context.Context, username, password string) (*model.User, error) {
	var user model.User
	body := model.LoginCredentials{Username: username, Password: password}
	if err := c.call(ctx, c.doer, http.MethodPost, pathLogin, nil, body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout はログアウトする。
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, c.doer, http.MethodPost, pathLogout, nil, nil, nil)
}

// Me はログイン中のユーザー情報を返す。
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.call(ctx, c.doer, http.MethodGet, pathMe, nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshToken はリフレッシュトークンでトークンを更新する。
// パイプラインを経由せずに直接送信する。
func (c *Client) RefreshToken(ctx context.Context) error {
	return c.call(ctx, c.raw, http.MethodPost, pathRefresh, nil, nil, nil)
}

// FetchProducts は商品一覧を返す。
func (c *Client) FetchProducts(ctx context.Context, q model.ProductQuery) (*model.ProductsPage, error) {
	var page model.ProductsPage
	if err := c.call(ctx, c.doer, http.MethodGet, pathProducts, queryValues(q), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ProductsByCategory はカテゴリ内の商品一覧を返す。
func (c *Client) ProductsByCategory(ctx context.Context, category string, q model.ProductQuery) (*model.ProductsPage, error) {
	q.Category = category
	return c.FetchProducts(ctx, q)
}

// SearchProducts は商品を検索する。
func (c *Client) SearchProducts(ctx context.Context, query string, q model.ProductQuery) (*model.ProductsPage, error) {
	values := queryValues(q)
	values.Set("q", query)
	var page model.ProductsPage
	if err := c.call(ctx, c.doer, http.MethodGet, pathSearch, values, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetProduct は商品の詳細を返す。
func (c *Client) GetProduct(ctx context.Context, id int) (*model.Product, error) {
	var product model.Product
	path := pathProducts + "/" + strconv.Itoa(id)
	if err := c.call(ctx, c.doer, http.MethodGet, path, nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Categories はカテゴリ一覧を返す。
func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.call(ctx, c.doer, http.MethodGet, pathCategories, nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// queryValues はクエリ条件をクエリパラメータに変換する。
// ゼロ値の項目はサーバー側のデフォルトに任せる。
func queryValues(q model.ProductQuery) url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Skip > 0 {
		v.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.HasSort() {
		v.Set("sortBy", q.SortBy)
		v.Set("order", q.Order)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	return v
}

func (c *Client) call(ctx context.Context, doer Doer, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg model.MessageResponse
		_ = json.Unmarshal(data, &msg)
		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return &HTTPError{StatusCode: resp.StatusCode, Message: msg.Message}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
