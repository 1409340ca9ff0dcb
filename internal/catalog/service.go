// Package catalog は商品一覧・検索・詳細・カテゴリ取得のビジネスロジックを提供する。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/storefront/internal/gateway"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/security"
)

// Gateway はカタログ取得に必要な上流APIの操作を定義する。
type Gateway interface {
	ListProducts(ctx context.Context, q model.ProductQuery) (*model.ProductsPage, error)
	SearchProducts(ctx context.Context, query string, q model.ProductQuery) (*model.ProductsPage, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	Categories(ctx context.Context) ([]model.Category, error)
}

// Service はカタログに関するビジネスロジックを提供する。
// 上流から受け取った表示用テキストはサニタイズしてから返す。
type Service struct {
	gateway   Gateway
	sanitizer security.TextSanitizer
	logger    *slog.Logger
}

// NewService はServiceを生成する。sanitizerがnilの場合はサニタイズしない。
func NewService(gw Gateway, sanitizer security.TextSanitizer, logger *slog.Logger) *Service {
	if sanitizer == nil {
		sanitizer = security.NopSanitizer{}
	}
	return &Service{
		gateway:   gw,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// ListProducts は商品一覧を返す。
func (s *Service) ListProducts(ctx context.Context, q model.ProductQuery) (*model.ProductsPage, error) {
	page, err := s.gateway.ListProducts(ctx, q)
	if err != nil {
		return nil, s.translate(err, "Failed to fetch products")
	}
	s.sanitizePage(page)
	return page, nil
}

// SearchProducts はキーワードで商品を検索する。空のキーワードは400を返す。
func (s *Service) SearchProducts(ctx context.Context, query string, q model.ProductQuery) (*model.ProductsPage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.NewValidationError("Search query is required")
	}

	page, err := s.gateway.SearchProducts(ctx, query, q)
	if err != nil {
		return nil, s.translate(err, "Failed to search products")
	}
	s.sanitizePage(page)
	return page, nil
}

// GetProduct はIDで商品を1件返す。上流の404は"Product not found"に変換する。
func (s *Service) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	product, err := s.gateway.GetProduct(ctx, id)
	if err != nil {
		if gateway.StatusOf(err) == http.StatusNotFound {
			return nil, model.NewNotFoundError("Product not found")
		}
		return nil, s.translate(err, "Failed to fetch product")
	}
	s.sanitizeProduct(product)
	return product, nil
}

// Categories はカテゴリ一覧を返す。
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.gateway.Categories(ctx)
	if err != nil {
		return nil, s.translate(err, "Failed to fetch categories")
	}
	for i := range categories {
		categories[i].Name = s.sanitizer.Sanitize(categories[i].Name)
	}
	return categories, nil
}

// translate はゲートウェイのエラーをAPIエラーに変換する。
// 上流のステータスがある場合はそれを引き継ぎ、ブレーカー開放は503にする。
func (s *Service) translate(err error, message string) error {
	if status := gateway.StatusOf(err); status != 0 {
		return model.NewUpstreamError(status, message)
	}
	if errors.Is(err, gateway.ErrUnavailable) {
		return model.NewUpstreamError(http.StatusServiceUnavailable, message)
	}
	s.logger.Error("カタログの取得に失敗しました",
		slog.String("message", message),
		slog.String("error", err.Error()),
	)
	return model.NewInternalError(fmt.Errorf("%s: %w", strings.ToLower(message), err))
}

func (s *Service) sanitizePage(page *model.ProductsPage) {
	if page.Products == nil {
		page.Products = []model.Product{}
	}
	for i := range page.Products {
		s.sanitizeProduct(&page.Products[i])
	}
}

func (s *Service) sanitizeProduct(p *model.Product) {
	p.Title = s.sanitizer.Sanitize(p.Title)
	p.Description = s.sanitizer.Sanitize(p.Description)
	p.Brand = s.sanitizer.Sanitize(p.Brand)
	p.Category = s.sanitizer.Sanitize(p.Category)
	for i, tag := range p.Tags {
		p.Tags[i] = s.sanitizer.Sanitize(tag)
	}
}
