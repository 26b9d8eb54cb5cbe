package model

import "time"

// BlogStatus はブログのモデレーション状態を表す。
type BlogStatus string

const (
	BlogStatusDraft     BlogStatus = "DRAFT"
	BlogStatusPending   BlogStatus = "PENDING"
	BlogStatusPublished BlogStatus = "PUBLISHED"
	BlogStatusRejected  BlogStatus = "REJECTED"
	BlogStatusScheduled BlogStatus = "SCHEDULED"
)

// Valid はステータスが定義済みの値かを返す。
func (s BlogStatus) Valid() bool {
	switch s {
	case BlogStatusDraft, BlogStatusPending, BlogStatusPublished, BlogStatusRejected, BlogStatusScheduled:
		return true
	}
	return false
}

// AuthorSettable は著者自身が設定できるステータスかを返す。
// 公開・却下・予約は管理者のみが行える。
func (s BlogStatus) AuthorSettable() bool {
	return s == BlogStatusDraft || s == BlogStatusPending
}

// Blog はブログ記事を表す。
type Blog struct {
	ID            string
	Title         string
	Excerpt       string
	Content       string
	Slug          string
	Category      string
	Tags          []string
	CoverImage    string
	Status        BlogStatus
	Featured      bool
	ReadTime      string
	PublishedAt   *time.Time
	ScheduledAt   *time.Time
	Views         int64
	LikesCount    int
	CommentsCount int
	TrendingScore float64
	AuthorID      string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// 一覧・詳細取得時にJOINで埋める
	Author *UserSummary
	// 認証済み閲覧者がいいね済みか（詳細取得時のみ）
	IsLiked bool
}

// BlogSort は一覧の並び順。
type BlogSort string

const (
	BlogSortLatest   BlogSort = "latest"
	BlogSortOldest   BlogSort = "oldest"
	BlogSortPopular  BlogSort = "popular"
	BlogSortViews    BlogSort = "views"
	BlogSortTrending BlogSort = "trending"
)

// ParseBlogSort は文字列を並び順に変換する。未知の値はlatest。
func ParseBlogSort(s string) BlogSort {
	switch BlogSort(s) {
	case BlogSortOldest, BlogSortPopular, BlogSortViews, BlogSortTrending:
		return BlogSort(s)
	default:
		return BlogSortLatest
	}
}

// BlogFilter はブログ一覧の検索条件。
// Status, Featured が nil の場合は条件に含めない。
type BlogFilter struct {
	Category string
	Tags     []string
	Status   *BlogStatus
	AuthorID string
	Featured *bool
	Search   string
	// 検索インデックスが返したID集合。nilでなければSearchより優先する。
	IDs  []string
	Sort BlogSort

	// 可視性: ViewerIDが空なら公開済みのみ、ViewerIsAdminなら全件
	ViewerID      string
	ViewerIsAdmin bool
}

// LikeResult はいいねトグルの結果。
type LikeResult struct {
	Liked      bool
	LikesCount int
}
