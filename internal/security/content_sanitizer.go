// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は上流APIから受け取った商品テキストからHTMLを取り除き、
// 画面にそのまま描画しても安全なプレーンテキストに変換する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はテキストサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize は全てのタグを除去したプレーンテキストを返す。
	// エンティティはデコード済みの形で返す。空文字列には空文字列を返す。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーは並行利用しても安全。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はタグを除去し、StrictPolicyがエスケープした文字を元に戻す。
// 戻り値はJSONとして返すため、HTMLエスケープは描画側に任せる。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}

// NopSanitizer は入力をそのまま返すTextSanitizer。
type NopSanitizer struct{}

// Sanitize は入力をそのまま返す。
func (NopSanitizer) Sanitize(raw string) string { return raw }
