// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/blogflow/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// UsernameExists はユーザー名が使用済みかを返す。
	UsernameExists(ctx context.Context, username string) (bool, error)

	// Create はユーザーを作成する。email/usernameの重複は*DuplicateErrorを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateRole はユーザーのロールを更新する。
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// UpdateProfile はプロフィール項目（username, name, avatar, bio, リンク類）を更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// List はユーザー一覧を作成日時の降順で返す。
	List(ctx context.Context, page model.Page) ([]*model.User, int, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 所有するブログ、コメント、いいね、通知、リフレッシュセッションはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// RefreshSessionRepository はリフレッシュトークンの失効管理の永続化インターフェース。
type RefreshSessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.RefreshSession) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.RefreshSession, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// BlogRepository はブログデータの永続化インターフェース。
// カウンタ更新を伴う操作は関連するusers行の更新と同一トランザクションで行う。
type BlogRepository interface {
	// FindByID は指定IDのブログを著者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Blog, error)

	// FindBySlug はスラッグでブログを取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Blog, error)

	// ListSlugs はbase自身とbase-N形式のスラッグを返す。excludeIDのブログは除外する。
	ListSlugs(ctx context.Context, base, excludeID string) ([]string, error)

	// List はフィルタと可視性条件に一致するブログと総件数を返す。
	List(ctx context.Context, filter model.BlogFilter, page model.Page) ([]*model.Blog, int, error)

	// Create はブログを作成し、著者のarticles_countを加算する。
	Create(ctx context.Context, blog *model.Blog) error

	// Update はブログの編集可能な列とステータス関連列を更新する。
	Update(ctx context.Context, blog *model.Blog) error

	// Delete はブログを削除し、著者のarticles_countとtotal_likesを減算する。
	// 存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// IncrementViews は閲覧数と著者のtotal_viewsを1加算し、更新後の閲覧数を返す。
	IncrementViews(ctx context.Context, id string) (int64, error)

	// ToggleLike はいいねを付け外しし、likes_countと著者のtotal_likesを同時に更新する。
	// 同一ユーザーの同時いいねで一意制約に当たった場合は何もしない。
	ToggleLike(ctx context.Context, blogID, userID string) (*model.LikeResult, error)

	// HasLiked はユーザーがブログにいいね済みかを返す。
	HasLiked(ctx context.Context, blogID, userID string) (bool, error)

	// UpdateTrendingScore はトレンドスコアを更新する。
	UpdateTrendingScore(ctx context.Context, id string, score float64) error

	// RecomputeTrendingScores は公開済み全ブログのトレンドスコアを再計算し、更新件数を返す。
	RecomputeTrendingScores(ctx context.Context) (int64, error)

	// PublishDueScheduled はscheduled_at <= nowの予約ブログを公開状態に更新し、更新したブログを返す。
	// 複数ワーカーでの重複処理を避けるためFOR UPDATE SKIP LOCKEDを用いる。
	PublishDueScheduled(ctx context.Context, now time.Time) ([]*model.Blog, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// ListTopLevel はブログのトップレベルコメントを新しい順に返す。
	ListTopLevel(ctx context.Context, blogID string, page model.Page) ([]*model.Comment, int, error)

	// ListReplies は指定した親コメントへの返信を古い順に返す。
	ListReplies(ctx context.Context, parentIDs []string) ([]*model.Comment, error)

	// Create はコメントを作成し、ブログのcomments_countを加算する。
	Create(ctx context.Context, comment *model.Comment) error

	// UpdateContent はコメント本文を更新する。
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error

	// Delete はコメントとその返信を削除し、削除件数だけcomments_countを減算する。
	// 削除件数を返す。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) (int, error)
}

// NotificationRepository は通知データの永続化インターフェース。
// 更新・削除は所有ユーザーIDで絞り込み、対象がなければfalseを返す。
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]*model.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	SetRead(ctx context.Context, id, userID string, read bool) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
	DeleteAllRead(ctx context.Context, userID string) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
