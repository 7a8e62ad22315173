// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力したテキスト（目標名、エクササイズ説明、
// メッセージ本文など）を保存前に無害化する。
// bluemondayライブラリを使用した許可リストベースのポリシーを使用する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力テキストの無害化機能のインターフェース。
type TextSanitizer interface {
	// PlainText は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 名前、件名、説明など装飾を持たないフィールドに使用する。
	PlainText(s string) string
	// RichText は基本的な装飾タグのみを残したHTMLを返す。
	// メッセージ本文に使用する。
	RichText(s string) string
}

type textSanitizer struct {
	plain *bluemonday.Policy
	rich  *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// リッチテキストのポリシー:
//   - 許可タグ: p, br, ul, ol, li, blockquote, strong, em, a
//   - aタグ: httpsのhrefのみ、target="_blank" と rel="noopener noreferrer" を付与
//   - script, iframe, style, img および全てのon*イベント属性は除去
func NewTextSanitizer() TextSanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em",
	)
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowURLSchemes("https")
	rich.AllowRelativeURLs(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)

	return &textSanitizer{
		plain: bluemonday.StrictPolicy(),
		rich:  rich,
	}
}

// PlainText は全てのHTMLタグを除去する。
// bluemondayがエスケープした実体参照は元の文字に戻す（表示側でエスケープされる）。
func (s *textSanitizer) PlainText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.plain.Sanitize(in)))
}

// RichText は許可タグのみを残したHTMLを返す。
func (s *textSanitizer) RichText(in string) string {
	return strings.TrimSpace(s.rich.Sanitize(in))
}
