// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/token"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, creds model.LoginCredentials) (*model.AuthResponse, error)
	CurrentUser(ctx context.Context, accessToken string) (*model.User, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
}

// TokenStore は認証ハンドラーが使うToken Storeの操作。
type TokenStore interface {
	token.Reader
	SetTokens(w http.ResponseWriter, accessToken, refreshToken string) error
	ClearTokens(w http.ResponseWriter)
}

// AuthHandler は認証関連のHTTPハンドラー。
// トークンはCookieでのみやり取りし、レスポンスボディには含めない。
type AuthHandler struct {
	service AuthServiceInterface
	tokens  TokenStore
	logger  *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, tokens TokenStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		tokens:  tokens,
		logger:  logger,
	}
}

// Login はユーザー名とパスワードでログインし、トークンをCookieに保存する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.LoginCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		middleware.WriteErrorResponse(w, model.NewValidationError("Invalid request body"))
		return
	}

	resp, err := h.service.Login(r.Context(), creds)
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}

	if err := h.tokens.SetTokens(w, resp.AccessToken, resp.RefreshToken); err != nil {
		middleware.WriteError(w, h.logger, fmt.Errorf("store tokens: %w", err))
		return
	}

	h.logger.Info("user logged in", slog.Int("user_id", resp.ID))
	middleware.WriteJSON(w, http.StatusOK, resp.User)
}

// Logout はトークンCookieを削除する。トークンが無くても成功する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.tokens.ClearTokens(w)
	middleware.WriteJSON(w, http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
}

// Me は現在のログインユーザー情報を返す。
// アクセストークンミドルウェアの後に配置する。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	accessToken, _ := middleware.AccessTokenFromContext(r.Context())

	user, err := h.service.CurrentUser(r.Context(), accessToken)
	if err != nil {
		middleware.WriteError(w, h.logger, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, user)
}

// Refresh はリフレッシュトークンでトークンペアを更新する。
// 上流が拒否した場合は古いトークンを削除する。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, _ := h.tokens.RefreshToken(r)

	pair, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		if model.AsAPIError(err).Kind == model.KindAuth {
			h.tokens.ClearTokens(w)
		}
		middleware.WriteError(w, h.logger, err)
		return
	}

	if err := h.tokens.SetTokens(w, pair.AccessToken, pair.RefreshToken); err != nil {
		middleware.WriteError(w, h.logger, fmt.Errorf("store refreshed tokens: %w", err))
		return
	}

	middleware.WriteJSON(w, http.StatusOK, model.MessageResponse{Message: "Token refreshed successfully"})
}
