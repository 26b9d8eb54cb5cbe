// Package comment はブログコメント（1階層の返信付き）のビジネスロジックを提供する。
package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/blogflow/internal/model"
	"github.com/hitoshi/blogflow/internal/repository"
	"github.com/hitoshi/blogflow/internal/security"
)

// maxContentLength はコメント本文の最大文字数。
const maxContentLength = 5000

// BlogFinder はコメント対象ブログの取得に使う。
type BlogFinder interface {
	FindByID(ctx context.Context, id string) (*model.Blog, error)
}

// Notifier は通知を作成する。
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}

// TrendingRefresher はコメント数の変化後にトレンドスコアを更新する。
type TrendingRefresher interface {
	RefreshTrendingScore(ctx context.Context, blogID string)
}

// Recorder はコメント作成のメトリクスを記録する。
type Recorder interface {
	RecordCommentCreated()
}

// CreateInput はコメント作成の入力。
type CreateInput struct {
	BlogID   string
	Content  string
	ParentID *string
}

// ListResult はトップレベルコメントの一覧。各コメントのRepliesに返信が入る。
type ListResult struct {
	Comments   []*model.Comment
	Pagination model.Pagination
}

// Service はコメントのサービス層。
type Service struct {
	comments  repository.CommentRepository
	blogs     BlogFinder
	notifier  Notifier
	trending  TrendingRefresher
	recorder  Recorder
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。notifier, trending, recorderはnil可。
func NewService(
	comments repository.CommentRepository,
	blogs BlogFinder,
	notifier Notifier,
	trending TrendingRefresher,
	recorder Recorder,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		comments:  comments,
		blogs:     blogs,
		notifier:  notifier,
		trending:  trending,
		recorder:  recorder,
		sanitizer: security.NewContentSanitizer(),
		logger:    logger,
		now:       time.Now,
	}
}

func canModerate(c *model.Comment, viewer *model.AuthContext) bool {
	return viewer != nil && (viewer.IsAdmin() || viewer.UserID == c.UserID)
}

func canSeeBlog(b *model.Blog, viewer *model.AuthContext) bool {
	if b.Status == model.BlogStatusPublished {
		return true
	}
	return viewer != nil && (viewer.IsAdmin() || viewer.UserID == b.AuthorID)
}

// ListByBlog はブログのトップレベルコメントを新しい順に返し、各コメントに返信を古い順で付ける。
func (s *Service) ListByBlog(ctx context.Context, blogID string, page model.Page, viewer *model.AuthContext) (*ListResult, error) {
	blog, err := s.blogs.FindByID(ctx, blogID)
	if err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	if blog == nil || !canSeeBlog(blog, viewer) {
		return nil, model.NewBlogNotFoundError()
	}

	top, total, err := s.comments.ListTopLevel(ctx, blogID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	ids := make([]string, len(top))
	byID := make(map[string]*model.Comment, len(top))
	for i, c := range top {
		ids[i] = c.ID
		c.Replies = []*model.Comment{}
		byID[c.ID] = c
	}

	if len(ids) > 0 {
		replies, err := s.comments.ListReplies(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to list replies: %w", err)
		}
		for _, r := range replies {
			if parent, ok := byID[*r.ParentID]; ok {
				parent.Replies = append(parent.Replies, r)
			}
		}
	}

	if top == nil {
		top = []*model.Comment{}
	}
	return &ListResult{Comments: top, Pagination: page.Paginate(total)}, nil
}

// Create はコメントまたは返信を作成する。
// 返信先は同じブログのトップレベルコメントに限る。
// 未公開ブログにはその著者と管理者しかコメントできない。
func (s *Service) Create(ctx context.Context, viewer *model.AuthContext, in CreateInput) (*model.Comment, error) {
	content, err := s.cleanContent(in.Content)
	if err != nil {
		return nil, err
	}

	blog, err := s.blogs.FindByID(ctx, in.BlogID)
	if err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	if blog == nil {
		return nil, model.NewBlogNotFoundError()
	}
	if blog.Status != model.BlogStatusPublished && !viewer.IsAdmin() && viewer.UserID != blog.AuthorID {
		return nil, model.NewAccessDeniedError("Cannot comment on an unpublished blog")
	}

	var parent *model.Comment
	if in.ParentID != nil && strings.TrimSpace(*in.ParentID) != "" {
		parent, err = s.comments.FindByID(ctx, strings.TrimSpace(*in.ParentID))
		if err != nil {
			return nil, fmt.Errorf("failed to find parent comment: %w", err)
		}
		if parent == nil || parent.BlogID != blog.ID || parent.IsReply() {
			return nil, model.NewInvalidParentCommentError()
		}
	}

	now := s.now().UTC()
	c := &model.Comment{
		ID:        uuid.New().String(),
		Content:   content,
		BlogID:    blog.ID,
		UserID:    viewer.UserID,
		CreatedAt: now,
		UpdatedAt: now,
		Replies:   []*model.Comment{},
	}
	if parent != nil {
		parentID := parent.ID
		c.ParentID = &parentID
	}

	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	if s.recorder != nil {
		s.recorder.RecordCommentCreated()
	}
	if s.trending != nil {
		s.trending.RefreshTrendingScore(ctx, blog.ID)
	}

	s.notifyParticipants(ctx, blog, parent, c)

	// 著者情報付きで読み直す
	if stored, err := s.comments.FindByID(ctx, c.ID); err == nil && stored != nil {
		stored.Replies = []*model.Comment{}
		return stored, nil
	}
	return c, nil
}

// notifyParticipants はブログ著者と返信先コメントの著者に通知する。自分自身には通知しない。
func (s *Service) notifyParticipants(ctx context.Context, blog *model.Blog, parent *model.Comment, c *model.Comment) {
	if s.notifier == nil {
		return
	}
	blogID := blog.ID
	commentID := c.ID

	if blog.AuthorID != c.UserID {
		s.notify(ctx, &model.Notification{
			Type:      model.NotificationComment,
			Title:     "New comment",
			Message:   fmt.Sprintf("Someone commented on your blog %q.", blog.Title),
			UserID:    blog.AuthorID,
			BlogID:    &blogID,
			CommentID: &commentID,
		})
	}
	if parent != nil && parent.UserID != c.UserID {
		s.notify(ctx, &model.Notification{
			Type:      model.NotificationReply,
			Title:     "New reply",
			Message:   fmt.Sprintf("Someone replied to your comment on %q.", blog.Title),
			UserID:    parent.UserID,
			BlogID:    &blogID,
			CommentID: &commentID,
		})
	}
}

func (s *Service) notify(ctx context.Context, n *model.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("failed to create notification",
			slog.String("type", string(n.Type)),
			slog.String("user_id", n.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// Update はコメント本文を更新する。投稿者本人または管理者のみ。
func (s *Service) Update(ctx context.Context, id string, viewer *model.AuthContext, content string) (*model.Comment, error) {
	cleaned, err := s.cleanContent(content)
	if err != nil {
		return nil, err
	}
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError()
	}
	if !canModerate(c, viewer) {
		return nil, model.NewAccessDeniedError("You can only edit your own comments")
	}

	now := s.now().UTC()
	if err := s.comments.UpdateContent(ctx, id, cleaned, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewCommentNotFoundError()
		}
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	c.Content = cleaned
	c.UpdatedAt = now
	return c, nil
}

// Delete はコメントを削除する。トップレベルコメントの場合は返信も削除される。
// 削除した件数を返す。
func (s *Service) Delete(ctx context.Context, id string, viewer *model.AuthContext) (int, error) {
	c, err := s.comments.FindByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to find comment: %w", err)
	}
	if c == nil {
		return 0, model.NewCommentNotFoundError()
	}
	if !canModerate(c, viewer) {
		return 0, model.NewAccessDeniedError("You can only delete your own comments")
	}

	n, err := s.comments.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, model.NewCommentNotFoundError()
		}
		return 0, fmt.Errorf("failed to delete comment: %w", err)
	}
	if s.trending != nil {
		s.trending.RefreshTrendingScore(ctx, c.BlogID)
	}
	return n, nil
}

// cleanContent はタグを除去し、空と長さ超過を検証する。
func (s *Service) cleanContent(raw string) (string, error) {
	content := s.sanitizer.SanitizeStrict(raw)
	if content == "" {
		return "", model.NewValidationError("", model.FieldError{Field: "content", Message: "content is required"})
	}
	if len([]rune(content)) > maxContentLength {
		return "", model.NewValidationError("", model.FieldError{
			Field:   "content",
			Message: fmt.Sprintf("content must be at most %d characters", maxContentLength),
		})
	}
	return content, nil
}
