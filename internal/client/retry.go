package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultNoRefreshEndpoints は401でもリフレッシュを試みないエンドポイント。
// 認証エンドポイント自身の401をリフレッシュで救済するとループになる。
// ベースURLにパスが含まれる場合もあるため、リクエストパスの末尾で照合する。
var DefaultNoRefreshEndpoints = []string{
	"/api/auth/login",
	"/api/auth/logout",
	"/api/auth/refresh",
}

// LoginPath はリフレッシュ失敗時の遷移先。
const LoginPath = "/login"

// Doer はHTTPリクエストを実行する。*http.Clientが満たす。
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Navigator は画面遷移を要求する。リフレッシュに失敗した場合に呼ばれる。
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc は関数をNavigatorとして使うためのアダプタ。
type NavigatorFunc func(path string)

// Navigate はf(path)を呼ぶ。
func (f NavigatorFunc) Navigate(path string) { f(path) }

// RefreshFunc はリフレッシュエンドポイントを呼び出し、トークンを更新する。
type RefreshFunc func(ctx context.Context) error

type retriedKey struct{}

// isRetried はリクエストが既に1回リトライされたものかを返す。
func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// RefreshRetrier は401応答時にトークンをリフレッシュし、元のリクエストを1回だけ再送するDoer。
//
// 同時に複数のリクエストが401を受けた場合、それぞれが独立にリフレッシュする（集約しない）。
type RefreshRetrier struct {
	next      Doer
	refresh   RefreshFunc
	navigator Navigator
	excluded  []string
	logger    *slog.Logger
}

// RetrierConfig はRefreshRetrierの設定。
type RetrierConfig struct {
	Refresh            RefreshFunc
	Navigator          Navigator // nilの場合は遷移しない
	NoRefreshEndpoints []string  // nilの場合はDefaultNoRefreshEndpoints
	Logger             *slog.Logger
}

// NewRefreshRetrier はnextをラップするRefreshRetrierを生成する。
func NewRefreshRetrier(next Doer, cfg RetrierConfig) *RefreshRetrier {
	endpoints := cfg.NoRefreshEndpoints
	if endpoints == nil {
		endpoints = DefaultNoRefreshEndpoints
	}
	excluded := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if e = strings.TrimSuffix(e, "/"); e != "" {
			excluded = append(excluded, e)
		}
	}
	navigator := cfg.Navigator
	if navigator == nil {
		navigator = NavigatorFunc(func(string) {})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RefreshRetrier{
		next:      next,
		refresh:   cfg.Refresh,
		navigator: navigator,
		excluded:  excluded,
		logger:    logger,
	}
}

// Do はリクエストを実行する。
//
// 除外エンドポイント以外が401を返し、かつ未リトライの場合:
//  1. リフレッシュを呼ぶ
//  2. 成功したら元のリクエストを1回だけ再送し、その結果を返す
//  3. 失敗したらログイン画面へ遷移させ、リフレッシュのエラーを返す
//
// それ以外の応答はそのまま返す。
func (rr *RefreshRetrier) Do(req *http.Request) (*http.Response, error) {
	if err := ensureReplayableBody(req); err != nil {
		return nil, err
	}

	first, err := cloneRequest(req.Context(), req)
	if err != nil {
		return nil, err
	}
	resp, err := rr.next.Do(first)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || rr.isExcluded(req) || isRetried(req.Context()) || rr.refresh == nil {
		return resp, nil
	}

	// 401のボディは使わないので読み捨てる
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	rr.logger.Debug("received 401, refreshing tokens", slog.String("path", req.URL.Path))

	if err := rr.refresh(req.Context()); err != nil {
		rr.logger.Info("token refresh failed, navigating to login",
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		rr.navigator.Navigate(LoginPath)
		return nil, err
	}

	retry, err := cloneRequest(context.WithValue(req.Context(), retriedKey{}, true), req)
	if err != nil {
		return nil, err
	}
	return rr.next.Do(retry)
}

// isExcluded はリクエストパスが除外エンドポイントで終わるかを返す。
// "/shop/api/auth/login" は "/api/auth/login" に一致するが、"/api/auth/loginx" は一致しない。
func (rr *RefreshRetrier) isExcluded(req *http.Request) bool {
	path := strings.TrimSuffix(req.URL.Path, "/")
	for _, e := range rr.excluded {
		if !strings.HasSuffix(path, e) {
			continue
		}
		rest := path[:len(path)-len(e)]
		if rest == "" || strings.HasSuffix(rest, "/") || strings.HasPrefix(e, "/") {
			return true
		}
	}
	return false
}

// ensureReplayableBody は再送のためにボディを再生成できるようにする。
func ensureReplayableBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	buf, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	req.Body, _ = req.GetBody()
	return nil
}

// cloneRequest はボディを新しく生成したリクエストの複製を返す。
// Cookie Jarのヘッダーは送信時に付与されるため、複製にはリフレッシュ後のCookieが載る。
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}
