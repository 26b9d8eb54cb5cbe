package blog

import (
	"strconv"
	"strings"
)

// fallbackSlug は英数字を含まないタイトルに使うスラッグ。
const fallbackSlug = "post"

// Slugify はタイトルからURLに使えるスラッグを生成する。
// 小文字化し、英数字・ハイフン・空白以外を除去し、空白の連続をハイフン1つにまとめ、
// 前後のハイフンを除く。結果が空の場合は"post"を返す。
func Slugify(title string) string {
	var b strings.Builder
	pendingHyphen := false

	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '_':
			pendingHyphen = true
		}
	}

	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

// UniqueSlug はexistingと衝突しないスラッグを返す。
// baseが未使用ならそのまま、使用済みなら base-1, base-2, … の最初の空きを返す。
func UniqueSlug(base string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		taken[s] = struct{}{}
	}
	if _, ok := taken[base]; !ok {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
