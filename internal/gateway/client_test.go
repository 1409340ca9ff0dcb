package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/telemetry"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// mockMetrics はテスト用のMetricsCollector。
type mockMetrics struct {
	requests []int
	failures []string
	states   []string
}

func (m *mockMetrics) RecordUpstreamRequest(_ string, status int, _ time.Duration) {
	m.requests = append(m.requests, status)
}
func (m *mockMetrics) RecordUpstreamFailure(_ string, reason string) {
	m.failures = append(m.failures, reason)
}
func (m *mockMetrics) RecordBreakerState(_ string, state string) { m.states = append(m.states, state) }
func (m *mockMetrics) RecordTokenRefresh(string)                 {}
func (m *mockMetrics) RecordRouteDecision(string)                {}
func (m *mockMetrics) RecordHTTPStatus(int)                      {}

func newTestClient(t *testing.T, server *httptest.Server, m *mockMetrics) *Client {
	t.Helper()
	var buf bytes.Buffer
	var mc *mockMetrics = m
	if mc == nil {
		mc = &mockMetrics{}
	}
	c := NewClient(server.Client(), newTestLogger(&buf), mc, Config{
		BreakerMaxFailures: 2,
		BreakerOpenTimeout: time.Minute,
	})
	c.baseURL = server.URL
	return c
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(nil, newTestLogger(&buf), nil, Config{})
	if c == nil {
		t.Fatal("NewClient は nil を返してはならない")
	}
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
}

func TestClient_Login_PostsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Errorf("request = %s %s, want POST /auth/login", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var creds model.LoginCredentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if creds.Username != "emilys" || creds.Password != "emilyspass" {
			t.Errorf("credentials = %+v", creds)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":           1,
			"username":     "emilys",
			"email":        "emily.johnson@x.dummyjson.com",
			"firstName":    "Emily",
			"accessToken":  "access-1",
			"refreshToken": "refresh-1",
		})
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	resp, err := c.Login(context.Background(), model.LoginCredentials{Username: "emilys", Password: "emilyspass"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if resp.ID != 1 || resp.Username != "emilys" {
		t.Errorf("user = %+v", resp.User)
	}
	if resp.AccessToken != "access-1" || resp.RefreshToken != "refresh-1" {
		t.Errorf("tokens = %+v", resp.TokenPair)
	}
}

func TestClient_Login_RejectedReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid credentials"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	_, err := c.Login(context.Background(), model.LoginCredentials{Username: "a", Password: "b"})
	if StatusOf(err) != http.StatusBadRequest {
		t.Errorf("StatusOf(err) = %d, want 400 (err=%v)", StatusOf(err), err)
	}
}

func TestClient_Me_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
		}
		json.NewEncoder(w).Encode(model.User{ID: 7, Username: "u"})
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	user, err := c.Me(context.Background(), "tok")
	if err != nil {
		t.Fatalf("Me returned error: %v", err)
	}
	if user.ID != 7 {
		t.Errorf("user.ID = %d, want 7", user.ID)
	}
}

func TestClient_Refresh_PostsRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["refreshToken"] != "r-old" {
			t.Errorf("refreshToken = %q, want r-old", body["refreshToken"])
		}
		json.NewEncoder(w).Encode(model.TokenPair{AccessToken: "a-new", RefreshToken: "r-new"})
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	pair, err := c.Refresh(context.Background(), "r-old")
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if pair.AccessToken != "a-new" || pair.RefreshToken != "r-new" {
		t.Errorf("pair = %+v", pair)
	}
}

func TestClient_Refresh_EmptyTokensIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	if _, err := c.Refresh(context.Background(), "r"); err == nil {
		t.Error("expected error for empty token pair")
	}
}

func TestClient_ListProducts_BuildsQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     model.ProductQuery
		wantPath  string
		wantQuery string
	}{
		{
			name:      "デフォルト",
			query:     model.DefaultProductQuery(),
			wantPath:  "/products",
			wantQuery: "limit=10&skip=0",
		},
		{
			name:      "ソート条件は両方揃えば転送される",
			query:     model.ProductQuery{Limit: 12, Skip: 24, SortBy: "price", Order: "asc"},
			wantPath:  "/products",
			wantQuery: "limit=12&order=asc&skip=24&sortBy=price",
		},
		{
			name:      "sortByのみは転送されない",
			query:     model.ProductQuery{Limit: 10, SortBy: "price"},
			wantPath:  "/products",
			wantQuery: "limit=10&skip=0",
		},
		{
			name:      "カテゴリ指定はカテゴリ別エンドポイント",
			query:     model.ProductQuery{Limit: 10, Category: "beauty", SortBy: "title", Order: "desc"},
			wantPath:  "/products/category/beauty",
			wantQuery: "limit=10&order=desc&skip=0&sortBy=title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.wantPath {
					t.Errorf("path = %q, want %q", r.URL.Path, tt.wantPath)
				}
				if r.URL.RawQuery != tt.wantQuery {
					t.Errorf("query = %q, want %q", r.URL.RawQuery, tt.wantQuery)
				}
				json.NewEncoder(w).Encode(model.ProductsPage{
					Products: []model.Product{{ID: 1, Title: "Mascara"}},
					Total:    1,
				})
			}))
			defer server.Close()

			c := newTestClient(t, server, nil)
			page, err := c.ListProducts(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("ListProducts returned error: %v", err)
			}
			if page.Total != 1 || len(page.Products) != 1 {
				t.Errorf("page = %+v", page)
			}
		})
	}
}

func TestClient_SearchProducts_EncodesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/search" {
			t.Errorf("path = %q, want /products/search", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "red lipstick" {
			t.Errorf("q = %q, want %q", got, "red lipstick")
		}
		json.NewEncoder(w).Encode(model.ProductsPage{})
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	if _, err := c.SearchProducts(context.Background(), "red lipstick", model.DefaultProductQuery()); err != nil {
		t.Fatalf("SearchProducts returned error: %v", err)
	}
}

func TestClient_GetProduct_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products/999" {
			t.Errorf("path = %q, want /products/999", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	_, err := c.GetProduct(context.Background(), "999")
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusNotFound {
		t.Errorf("err = %v, want StatusError 404", err)
	}
}

func TestClient_Categories_DecodesList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"slug":"beauty","name":"Beauty","url":"https://dummyjson.com/products/category/beauty"}]`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	categories, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories returned error: %v", err)
	}
	if len(categories) != 1 || categories[0].Slug != "beauty" {
		t.Errorf("categories = %+v", categories)
	}
}

func TestClient_InvalidJSONIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	if _, err := c.Categories(context.Background()); err == nil {
		t.Error("expected parse error")
	}
}

func TestClient_BreakerOpensAfterServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := &mockMetrics{}
	c := newTestClient(t, server, m)

	for i := 0; i < 2; i++ {
		_, err := c.Categories(context.Background())
		if StatusOf(err) != http.StatusServiceUnavailable {
			t.Fatalf("call %d: err = %v, want status 503", i, err)
		}
	}

	_, err := c.Categories(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
	if len(m.states) == 0 || m.states[len(m.states)-1] != "open" {
		t.Errorf("breaker states = %v, want last to be open", m.states)
	}
}

func TestClient_ClientErrorsDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := newTestClient(t, server, nil)
	for i := 0; i < 5; i++ {
		_, err := c.GetProduct(context.Background(), "1")
		if StatusOf(err) != http.StatusNotFound {
			t.Fatalf("call %d: err = %v, want status 404", i, err)
		}
	}
	if got := calls.Load(); got != 5 {
		t.Errorf("upstream calls = %d, want 5", got)
	}
}

func TestClient_CanceledCallersDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 3 {
			select {
			case <-time.After(200 * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
		_ = json.NewEncoder(w).Encode([]model.Category{{Slug: "beauty", Name: "Beauty"}})
	}))
	defer server.Close()

	m := &mockMetrics{}
	c := newTestClient(t, server, m)

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		_, err := c.Categories(ctx)
		cancel()
		if err == nil {
			t.Fatalf("call %d: expected error from canceled caller", i)
		}
		if errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: breaker opened by canceled caller: %v", i, err)
		}
	}

	cats, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories() after canceled callers: %v", err)
	}
	if len(cats) != 1 {
		t.Errorf("categories = %d, want 1", len(cats))
	}
	if len(m.failures) != 0 {
		t.Errorf("upstream failures = %v, want none", m.failures)
	}
	if len(m.states) != 0 {
		t.Errorf("breaker state changes = %v, want none", m.states)
	}
}

func TestNewHTTPClient_SetsTimeoutAndTransport(t *testing.T) {
	hc := NewHTTPClient(3*time.Second, nil, nil)
	if hc.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", hc.Timeout)
	}
	if hc.Transport == nil {
		t.Error("Transport should be instrumented")
	}
}

func TestNewHTTPClient_PropagatesTraceAndRecordsSpan(t *testing.T) {
	var traceparent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("traceparent")
		_ = json.NewEncoder(w).Encode([]model.Category{})
	}))
	defer server.Close()

	sr := tracetest.NewSpanRecorder()
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{SampleRatio: 1}, sr)
	if err != nil {
		t.Fatalf("NewTracerProvider() error: %v", err)
	}
	defer tp.Shutdown(context.Background())

	var buf bytes.Buffer
	c := NewClient(NewHTTPClient(time.Second, tp, telemetry.Propagator()), newTestLogger(&buf), nil, Config{BaseURL: server.URL})

	ctx, parent := tp.Tracer("test").Start(context.Background(), "GET /api/products/categories")
	if _, err := c.Categories(ctx); err != nil {
		t.Fatalf("Categories() error: %v", err)
	}
	parent.End()

	wantTrace := parent.SpanContext().TraceID().String()
	if !strings.Contains(traceparent, wantTrace) {
		t.Errorf("traceparent = %q, want trace id %s", traceparent, wantTrace)
	}

	var upstream bool
	for _, s := range sr.Ended() {
		if s.Name() == "upstream GET /products/categories" {
			upstream = true
			if s.Parent().SpanID() != parent.SpanContext().SpanID() {
				t.Error("upstream span should be a child of the request span")
			}
		}
	}
	if !upstream {
		t.Error("upstream span was not recorded")
	}
}
