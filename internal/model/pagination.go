package model

import "math"

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	// MaxPage を超えるとOffsetがintの範囲を超える
	MaxPage = math.MaxInt / MaxPageLimit
)

// Page は一覧取得のページ指定。NewPageで正規化してから使う。
type Page struct {
	Page  int
	Limit int
}

// NewPage はページ番号と件数を正規化する。
// page < 1 は1、page > MaxPage はMaxPage、limit < 1 は10、limit > 100 は100に丸める。
func NewPage(page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Page: page, Limit: limit}
}

// Offset はSQLのOFFSET値を返す。
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination は一覧レスポンスのページ情報。
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Paginate は総件数からページ情報を組み立てる。
func (p Page) Paginate(total int) Pagination {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}
	return Pagination{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
	}
}
