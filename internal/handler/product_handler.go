package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// CatalogServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	ListProducts(ctx context.Context, q model.ProductQuery) (*model.ProductsPage, error)
	SearchProducts(ctx context.Context, query string, q model.ProductQuery) (*model.ProductsPage, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	Categories(ctx context.Context) ([]model.Category, error)
}

// ProductHandler は商品カタログのHTTPハンドラー。
type ProductHandler struct {
	service CatalogServiceInterface
	logger  *slog.Logger
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service CatalogServiceInterface, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger,
	}
}

// List は商品一覧を返す。
// GET /api/products?limit=10&skip=0&sortBy=price&order=asc&category=beauty
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q, apiErr := parseProductQuery(r.URL.Query())
	if apiErr != nil {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	page, err := h.service.ListProducts(r.Context(), q)
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, page)
}

// Search はキーワードで商品を検索する。
// GET /api/products/search?q=phone&limit=10&skip=0
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	query := values.Get("q")
	if query == "" {
		middleware.WriteErrorResponse(w, model.NewValidationError("Search query is required"))
		return
	}

	q, apiErr := parseProductQuery(values)
	if apiErr != nil {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}

	page, err := h.service.SearchProducts(r.Context(), query, q)
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, page)
}

// Get は商品詳細を返す。
// GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, product)
}

// Categories はカテゴリ一覧を返す。
// GET /api/products/categories
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}

	middleware.WriteJSON(w, http.StatusOK, categories)
}

// parseProductQuery はクエリ文字列から商品クエリを組み立てる。
// limitとskipは省略時にデフォルト値を使い、負数や数値以外は400とする。
func parseProductQuery(values url.Values) (model.ProductQuery, *model.APIError) {
	q := model.DefaultProductQuery()

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, model.NewValidationError("Invalid limit parameter")
		}
		q.Limit = n
	}
	if raw := values.Get("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, model.NewValidationError("Invalid skip parameter")
		}
		q.Skip = n
	}

	q.SortBy = values.Get("sortBy")
	q.Order = values.Get("order")
	q.Category = values.Get("category")
	return q, nil
}
