// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はサーバーから受け取ったtodoのタイトルや説明を端末に表示する前に
// 無害化する。bluemondayのStrictPolicyで全てのタグを除去し、
// エスケープシーケンス等の制御文字を取り除く。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は表示用テキストの無害化機能のインターフェースを定義する。
type TextSanitizer interface {
	// Clean はHTMLタグと制御文字を除去したプレーンテキストを返す。
	// 改行とタブは保持する。空文字列の入力には空文字列を返す。
	Clean(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean はHTMLタグと制御文字を除去したプレーンテキストを返す。
func (s *textSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	// StrictPolicyは&等をエスケープして返すため、表示用に戻す
	text := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
}
