// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind はエラーの分類を表す。
type ErrorKind string

const (
	// KindValidation は必須入力の欠落など、呼び出し元の入力に起因するエラー（400）。
	KindValidation ErrorKind = "validation"
	// KindAuth は認証情報の欠落・無効・期限切れ（401）。
	KindAuth ErrorKind = "auth"
	// KindUpstream はカタログ/認証ゲートウェイが認証以外の非2xxを返したエラー。
	// ステータスは上流の値をそのまま使う。
	KindUpstream ErrorKind = "upstream"
	// KindInternal は想定外のローカル障害（500）。詳細はログのみに記録する。
	KindInternal ErrorKind = "internal"
)

// APIError はAPIレスポンスとして返すエラーを表す。
// クライアントへはMessageのみを {"message": ...} として返す。
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error // ログ用の原因。レスポンスには含めない
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s %d] %s: %v", e.Kind, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s %d] %s", e.Kind, e.Status, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// NewValidationError は入力不備エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Status:  http.StatusBadRequest,
		Message: message,
	}
}

// NewAuthError は認証エラーを生成する。
func NewAuthError(message string) *APIError {
	return &APIError{
		Kind:    KindAuth,
		Status:  http.StatusUnauthorized,
		Message: message,
	}
}

// NewUpstreamError は上流のステータスを引き継ぐエラーを生成する。
// 2xxや不正な値が渡された場合は502として扱う。
func NewUpstreamError(status int, message string) *APIError {
	if status < 300 || status > 599 {
		status = http.StatusBadGateway
	}
	return &APIError{
		Kind:    KindUpstream,
		Status:  status,
		Message: message,
	}
}

// NewNotFoundError は上流で対象が見つからなかった場合のエラーを生成する。
func NewNotFoundError(message string) *APIError {
	return NewUpstreamError(http.StatusNotFound, message)
}

// NewInternalError は内部エラーを生成する。
// 原因はErrに保持し、メッセージは汎用のものに固定する。
func NewInternalError(cause error) *APIError {
	return &APIError{
		Kind:    KindInternal,
		Status:  http.StatusInternalServerError,
		Message: "Internal server error",
		Err:     cause,
	}
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
// 見つからない場合は内部エラーに変換する。
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return NewInternalError(err)
}
