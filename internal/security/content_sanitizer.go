// Package security はユーザー入力のサニタイズとURL検証を提供する。
//
// ContentSanitizer はブログ本文とコメントのHTMLを保存前に無害化する。
// bluemondayの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLサニタイズのインターフェース。
type ContentSanitizerService interface {
	// SanitizeRich はブログ本文向けにHTMLをサニタイズする。
	// 見出し、リスト、引用、コード、表、リンク、https画像を許可し、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	SanitizeRich(rawHTML string) string

	// SanitizeStrict は全てのタグを除去し、テキストのみを返す。
	// コメントと抜粋に使う。
	SanitizeStrict(raw string) string
}

// httpsSource はimgのsrcとして許可する値。
var httpsSource = regexp.MustCompile(`^https://`)

// ContentSanitizer はContentSanitizerServiceの実装。
// ポリシーは生成後に変更しないため、複数ゴルーチンから安全に使える。
type ContentSanitizer struct {
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// 本文用ポリシーの内容:
//   - UGCPolicyを基に、相対URLを禁止
//   - URLスキーム: http, https, mailto
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
//   - imgのsrc属性: httpsのみ許可
func NewContentSanitizer() *ContentSanitizer {
	rich := bluemonday.UGCPolicy()
	rich.AllowRelativeURLs(false)
	rich.AllowURLSchemes("http", "https", "mailto")
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)
	rich.AllowAttrs("src").Matching(httpsSource).OnElements("img")

	return &ContentSanitizer{
		rich:   rich,
		strict: bluemonday.StrictPolicy(),
	}
}

// SanitizeRich はブログ本文向けにHTMLをサニタイズする。
func (s *ContentSanitizer) SanitizeRich(rawHTML string) string {
	return strings.TrimSpace(s.rich.Sanitize(rawHTML))
}

// SanitizeStrict は全てのタグを除去したテキストを返す。
// 出力はエスケープしない。表示側でテキストとして扱うこと。
func (s *ContentSanitizer) SanitizeStrict(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

var _ ContentSanitizerService = (*ContentSanitizer)(nil)
