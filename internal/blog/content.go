package blog

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hitoshi/blogflow/internal/security"
)

const (
	wordsPerMinute  = 200
	excerptMaxRunes = 200
)

// ReadTime は本文の語数から読了時間を "N min read" 形式で返す。
// 200語/分で切り上げ、最小は1分。
func ReadTime(content string) string {
	words := len(strings.Fields(security.PlainText(content)))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}

// DeriveExcerpt は本文テキストの先頭200文字から抜粋を作る。
func DeriveExcerpt(content string) string {
	return security.Truncate(security.PlainText(content), excerptMaxRunes)
}

// TrendingScore は閲覧・いいね・コメント数と公開からの経過時間でスコアを計算する。
//
//	score = (views + 3*likes + 5*comments) / (ageHours + 2)^1.5
//
// リポジトリの一括再計算SQLと同じ式を使う。
func TrendingScore(views int64, likes, comments int, publishedAt, now time.Time) float64 {
	ageHours := now.Sub(publishedAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	engagement := float64(views) + 3*float64(likes) + 5*float64(comments)
	return engagement / math.Pow(ageHours+2, 1.5)
}
