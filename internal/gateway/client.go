// Package gateway は商品カタログ/認証を提供する上流API（DummyJSON互換）のクライアントを提供する。
// 全ての呼び出しはサーキットブレーカーを経由し、上流の障害が続く間は即座に失敗する。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/sony/gobreaker/v2"
)

const (
	// DefaultBaseURL は上流APIのデフォルトURL。
	DefaultBaseURL = "https://dummyjson.com"
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 4 << 20
	userAgent        = "Storefront/1.0"
)

// メトリクスのエンドポイントラベル
const (
	endpointLogin      = "login"
	endpointMe         = "me"
	endpointRefresh    = "refresh"
	endpointProducts   = "products"
	endpointCategory   = "products_category"
	endpointSearch     = "products_search"
	endpointProduct    = "product"
	endpointCategories = "categories"
)

// ErrUnavailable はサーキットブレーカーが開いていて呼び出しを行わなかったことを示す。
var ErrUnavailable = errors.New("upstream unavailable")

// StatusError は上流が2xx以外のステータスを返したことを表す。
type StatusError struct {
	Endpoint string
	Status   int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.Endpoint, e.Status)
}

// callerGoneError は呼び出し元のコンテキストが終了したため上流の応答を待てなかったことを表す。
// 上流の障害ではないのでサーキットブレーカーの集計から除外する。
type callerGoneError struct {
	endpoint string
	err      error
}

func (e *callerGoneError) Error() string {
	return fmt.Sprintf("%s request abandoned by caller: %v", e.endpoint, e.err)
}

func (e *callerGoneError) Unwrap() error { return e.err }

func isCallerGone(err error) bool {
	var cg *callerGoneError
	return errors.As(err, &cg)
}

// StatusOf はエラーチェーン中のStatusErrorのステータスを返す。
// StatusErrorを含まない場合は0を返す。
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// Config はゲートウェイクライアントの設定。
type Config struct {
	BaseURL            string
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
}

// Client は上流APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string // テスト用に差し替え可能
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewClient はClientの新しいインスタンスを生成する。
// metricsがnilの場合はメトリクスを記録しない。
func NewClient(httpClient *http.Client, logger *slog.Logger, m metrics.MetricsCollector, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.BreakerMaxFailures <= 0 {
		cfg.BreakerMaxFailures = 5
	}

	c := &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}

	maxFailures := uint32(cfg.BreakerMaxFailures)
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "upstream",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// 4xxは呼び出し側の問題なので上流の障害として数えない
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			status := StatusOf(err)
			return status != 0 && status < http.StatusInternalServerError
		},
		// クライアント切断やハンドラのタイムアウトは成功にも失敗にも数えない
		IsExcluded: isCallerGone,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("サーキットブレーカーの状態が変化しました",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			c.metrics.RecordBreakerState(name, to.String())
		},
	})

	return c
}

// Login はユーザー名とパスワードで上流にログインし、ユーザー情報とトークンを返す。
func (c *Client) Login(ctx context.Context, creds model.LoginCredentials) (*model.AuthResponse, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}

	var resp model.AuthResponse
	if err := c.doJSON(ctx, endpointLogin, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, fmt.Errorf("empty token in login response")
	}
	return &resp, nil
}

// Me はアクセストークンに対応するユーザー情報を取得する。
func (c *Client) Me(ctx context.Context, accessToken string) (*model.User, error) {
	var user model.User
	if err := c.doJSON(ctx, endpointMe, http.MethodGet, "/auth/me", nil, accessToken, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh はリフレッシュトークンで新しいトークンペアを取得する。
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	body, err := json.Marshal(map[string]string{"refreshToken": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	var pair model.TokenPair
	if err := c.doJSON(ctx, endpointRefresh, http.MethodPost, "/auth/refresh", body, "", &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, fmt.Errorf("empty token in refresh response")
	}
	return &pair, nil
}

// ListProducts は商品一覧を取得する。
// Categoryが指定された場合はカテゴリ別一覧のエンドポイントを使う。
func (c *Client) ListProducts(ctx context.Context, q model.ProductQuery) (*model.ProductsPage, error) {
	path := "/products"
	endpoint := endpointProducts
	if q.Category != "" {
		path = "/products/category/" + url.PathEscape(q.Category)
		endpoint = endpointCategory
	}

	var page model.ProductsPage
	if err := c.doJSON(ctx, endpoint, http.MethodGet, path+"?"+pageValues(q).Encode(), nil, "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SearchProducts は商品をキーワード検索する。
func (c *Client) SearchProducts(ctx context.Context, query string, q model.ProductQuery) (*model.ProductsPage, error) {
	v := pageValues(q)
	v.Set("q", query)

	var page model.ProductsPage
	if err := c.doJSON(ctx, endpointSearch, http.MethodGet, "/products/search?"+v.Encode(), nil, "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetProduct はIDで商品を1件取得する。
func (c *Client) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var product model.Product
	if err := c.doJSON(ctx, endpointProduct, http.MethodGet, "/products/"+url.PathEscape(id), nil, "", &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Categories はカテゴリ一覧を取得する。
func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := c.doJSON(ctx, endpointCategories, http.MethodGet, "/products/categories", nil, "", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// pageValues はページングとソートのクエリパラメータを組み立てる。
// sortByとorderは両方揃っている場合のみ付与する。
func pageValues(q model.ProductQuery) url.Values {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(q.Limit))
	v.Set("skip", strconv.Itoa(q.Skip))
	if q.HasSort() {
		v.Set("sortBy", q.SortBy)
		v.Set("order", q.Order)
	}
	return v
}

// doJSON はサーキットブレーカー経由でリクエストを実行し、レスポンスをoutにデコードする。
func (c *Client) doJSON(ctx context.Context, endpoint, method, pathAndQuery string, body []byte, bearer string, out any) error {
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, method, pathAndQuery, body, bearer)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.RecordUpstreamFailure(endpoint, "breaker_open")
			return fmt.Errorf("%s: %w", endpoint, ErrUnavailable)
		}
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("上流APIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return nil
}

// do は1回のHTTPリクエストを実行し、2xxの場合のみボディを返す。
func (c *Client) do(ctx context.Context, endpoint, method, pathAndQuery string, body []byte, bearer string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("呼び出し元が上流APIの応答を待たずに終了しました",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()),
			)
			return nil, &callerGoneError{endpoint: endpoint, err: err}
		}
		c.metrics.RecordUpstreamFailure(endpoint, "transport")
		c.logger.Error("上流APIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstreamRequest(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// ボディは読み捨ててコネクションを再利用できるようにする
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		level := slog.LevelWarn
		if resp.StatusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "上流APIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, &StatusError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, &callerGoneError{endpoint: endpoint, err: err}
		}
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}
	return raw, nil
}
