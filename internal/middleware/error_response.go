package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/storefront/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Message string `json:"message"`
}

// WriteJSON は任意の値をJSONレスポンスとして書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスはAPIErrorのStatusを使う。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	WriteJSON(w, apiErr.Status, ErrorResponseBody{Message: apiErr.Message})
}

// WriteError は任意のエラーをAPIエラーに変換して書き込む。
// 内部エラーの原因はログのみに記録する。
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	apiErr := model.AsAPIError(err)
	if apiErr.Kind == model.KindInternal && logger != nil {
		cause := err
		if apiErr.Err != nil {
			cause = apiErr.Err
		}
		logger.Error("internal error", slog.String("error", cause.Error()))
	}
	WriteErrorResponse(w, apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, model.NewInternalError(errors.New("unspecified")))
}
