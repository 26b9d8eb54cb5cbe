package security

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// skippedTextElements は本文テキストに含めない要素。
var skippedTextElements = map[string]bool{
	"script": true,
	"style":  true,
}

// PlainText はHTMLからテキストノードを抜き出し、空白を1つにまとめて返す。
// script, style要素の中身は含めない。
func PlainText(rawHTML string) string {
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	var b strings.Builder
	skipDepth := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpaces(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedTextElements[string(name)] {
				skipDepth++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedTextElements[string(name)] && skipDepth > 0 {
				skipDepth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// collapseSpaces は連続する空白を1つの半角スペースにまとめる。
func collapseSpaces(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Truncate は先頭maxRunes文字を返す。切り詰めた場合は末尾に"..."を付ける。
func Truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
