// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は外部IdPやクライアントから受け取った表示名などのプレーンテキストから
// HTMLタグを除去する。共有相手の一覧や通知本文にそのまま表示されるため、
// 保存前にbluemondayのStrictPolicyで無害化する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxTextLength はサニタイズ後のテキストの既定の最大文字数。
const DefaultMaxTextLength = 100

// TextSanitizer はプレーンテキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Sanitize はHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 最大文字数を超える部分は切り捨てる。同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
type textSanitizer struct {
	policy *bluemonday.Policy
	maxLen int
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// maxLenが0以下の場合はDefaultMaxTextLengthを使用する。
func NewTextSanitizer(maxLen int) *textSanitizer {
	if maxLen <= 0 {
		maxLen = DefaultMaxTextLength
	}
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
		maxLen: maxLen,
	}
}

// Sanitize はTextSanitizerを実装する。
func (s *textSanitizer) Sanitize(raw string) string {
	// StrictPolicyはエスケープ済みの文字列を返すため、表示用に戻す
	clean := html.UnescapeString(s.policy.Sanitize(raw))
	clean = strings.Join(strings.Fields(clean), " ")

	if utf8.RuneCountInString(clean) > s.maxLen {
		clean = string([]rune(clean)[:s.maxLen])
	}
	return clean
}

var _ TextSanitizer = (*textSanitizer)(nil)
