// Package auth はログイン、ユーザー情報取得、トークンリフレッシュのビジネスロジックを提供する。
// 上流ゲートウェイの結果をAPIエラーの分類に変換する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/gateway"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
)

// Gateway は認証に必要な上流APIの操作を定義する。
type Gateway interface {
	Login(ctx context.Context, creds model.LoginCredentials) (*model.AuthResponse, error)
	Me(ctx context.Context, accessToken string) (*model.User, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	gateway Gateway
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(gw Gateway, logger *slog.Logger, m metrics.MetricsCollector) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		gateway: gw,
		logger:  logger,
		metrics: m,
	}
}

// Login は資格情報を検証し、上流でログインする。
// 上流の4xxは資格情報の誤りとして401、それ以外の失敗は500に変換する。
func (s *Service) Login(ctx context.Context, creds model.LoginCredentials) (*model.AuthResponse, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, model.NewValidationError("Username and password are required")
	}

	resp, err := s.gateway.Login(ctx, creds)
	if err != nil {
		status := gateway.StatusOf(err)
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			s.logger.Info("ログインが拒否されました",
				slog.String("username", creds.Username),
				slog.Int("upstream_status", status),
			)
			apiErr := model.NewAuthError("Invalid credentials")
			apiErr.Err = err
			return nil, apiErr
		}
		s.logger.Error("ログイン処理に失敗しました",
			slog.String("username", creds.Username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError(fmt.Errorf("login: %w", err))
	}

	return resp, nil
}

// CurrentUser はアクセストークンに対応するユーザー情報を返す。
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*model.User, error) {
	if accessToken == "" {
		return nil, model.NewAuthError("Unauthorized")
	}

	user, err := s.gateway.Me(ctx, accessToken)
	if err != nil {
		switch status := gateway.StatusOf(err); {
		case status == http.StatusUnauthorized:
			return nil, model.NewAuthError("Token expired or invalid")
		case status != 0:
			return nil, model.NewUpstreamError(status, "Failed to fetch user")
		case errors.Is(err, gateway.ErrUnavailable):
			return nil, model.NewUpstreamError(http.StatusServiceUnavailable, "Failed to fetch user")
		default:
			s.logger.Error("ユーザー情報の取得に失敗しました", slog.String("error", err.Error()))
			return nil, model.NewInternalError(fmt.Errorf("get current user: %w", err))
		}
	}

	return user, nil
}

// Refresh はリフレッシュトークンで新しいトークンペアを取得する。
// リフレッシュトークンが無い場合と上流が拒否した場合はどちらも401を返す。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	if refreshToken == "" {
		s.metrics.RecordTokenRefresh(metrics.RefreshOutcomeMissing)
		return nil, model.NewAuthError("Refresh token not found")
	}

	pair, err := s.gateway.Refresh(ctx, refreshToken)
	if err != nil {
		if status := gateway.StatusOf(err); status != 0 {
			s.metrics.RecordTokenRefresh(metrics.RefreshOutcomeRejected)
			s.logger.Info("トークンリフレッシュが拒否されました", slog.Int("upstream_status", status))
			apiErr := model.NewAuthError("Failed to refresh token")
			apiErr.Err = err
			return nil, apiErr
		}
		s.metrics.RecordTokenRefresh(metrics.RefreshOutcomeError)
		s.logger.Error("トークンリフレッシュに失敗しました", slog.String("error", err.Error()))
		return nil, model.NewInternalError(fmt.Errorf("refresh token: %w", err))
	}

	s.metrics.RecordTokenRefresh(metrics.RefreshOutcomeSuccess)
	return pair, nil
}
