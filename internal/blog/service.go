// Package blog はブログ記事のライフサイクル（作成、編集、モデレーション、いいね、トレンド）を提供する。
package blog

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

const (
	DefaultTrendingLimit = 10
	MaxTrendingLimit     = 50

	trendingCachePrefix = "trending:"
	// 同時作成でスラッグが衝突した場合の再試行回数
	maxSlugAttempts = 3
	maxSearchHits   = 1000
	reindexBatch    = model.MaxPageLimit
)

// Searcher は全文検索インデックス。未設定・停止中はHealthyがfalseを返す。
type Searcher interface {
	Healthy() bool
	Search(query string, limit int) ([]string, error)
	IndexBlog(b *model.Blog) error
	IndexBlogs(blogs []*model.Blog) error
	DeleteBlog(id string) error
	NeedsReindex() bool
	MarkStale()
}

// Cache はトレンド一覧のキャッシュ。
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Notifier は著者への通知を作成する。
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}

// Recorder はブログ関連のメトリクスを記録する。
type Recorder interface {
	RecordBlogStatusTransition(status string)
	RecordBlogLike(liked bool)
	RecordScheduledPublished(count int)
}

// Dependencies はServiceの任意の協調オブジェクト。nilのものは使わない。
type Dependencies struct {
	Searcher  Searcher
	Cache     Cache
	Notifier  Notifier
	Recorder  Recorder
	Sanitizer security.ContentSanitizerService
	Logger    *slog.Logger
}

// CreateInput はブログ作成の入力。
type CreateInput struct {
	Title       string
	Content     string
	Excerpt     string
	Category    string
	Tags        []string
	CoverImage  string
	Status      model.BlogStatus
	Featured    bool
	ScheduledAt *time.Time
}

// UpdateInput はブログ更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Title      *string
	Content    *string
	Excerpt    *string
	Category   *string
	Tags       []string
	CoverImage *string
	Status     *model.BlogStatus
	Featured   *bool
}

// StatusInput は管理者によるステータス変更の入力。
type StatusInput struct {
	Status      model.BlogStatus
	Reason      string
	ScheduledAt *time.Time
}

// ListResult はブログ一覧の取得結果。
type ListResult struct {
	Blogs      []*model.Blog
	Pagination model.Pagination
}

// Service はブログのビジネスロジックを提供する。
type Service struct {
	repo      repository.BlogRepository
	searcher  Searcher
	cache     Cache
	notifier  Notifier
	recorder  Recorder
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.BlogRepository, deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = security.NewContentSanitizer()
	}
	return &Service{
		repo:      repo,
		searcher:  deps.Searcher,
		cache:     deps.Cache,
		notifier:  deps.Notifier,
		recorder:  deps.Recorder,
		sanitizer: deps.Sanitizer,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// canView は閲覧者がブログを参照できるかを返す。
// 公開済みは誰でも、それ以外は著者と管理者のみ。
func canView(b *model.Blog, viewer *model.AuthContext) bool {
	if b.Status == model.BlogStatusPublished {
		return true
	}
	return canModify(b, viewer)
}

func canModify(b *model.Blog, viewer *model.AuthContext) bool {
	return viewer != nil && (viewer.IsAdmin() || viewer.UserID == b.AuthorID)
}

// List は閲覧者の可視性に応じてブログ一覧を返す。
// 検索語があり検索インデックスが使える場合はインデックスの結果で絞り込み、
// 使えない場合はSQLの部分一致検索にフォールバックする。
func (s *Service) List(ctx context.Context, filter model.BlogFilter, page model.Page, viewer *model.AuthContext) (*ListResult, error) {
	filter.ViewerID = ""
	filter.ViewerIsAdmin = false
	if viewer != nil {
		filter.ViewerID = viewer.UserID
		filter.ViewerIsAdmin = viewer.IsAdmin()
	}
	filter.IDs = nil

	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Search != "" && s.searcher != nil && s.searcher.Healthy() {
		ids, err := s.searcher.Search(filter.Search, maxSearchHits)
		if err != nil {
			s.logger.Warn("search index query failed, falling back to sql",
				slog.String("error", err.Error()),
			)
		} else {
			filter.IDs = ids
		}
	}

	blogs, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list blogs: %w", err)
	}
	if blogs == nil {
		blogs = []*model.Blog{}
	}
	return &ListResult{Blogs: blogs, Pagination: page.Paginate(total)}, nil
}

// Get はUUIDまたはスラッグでブログを取得する。
// 参照できないブログは存在しない場合と同じくBlogNotFoundを返す。
// 公開済みブログは取得のたびに閲覧数を加算する。
func (s *Service) Get(ctx context.Context, identifier string, viewer *model.AuthContext) (*model.Blog, error) {
	var (
		blog *model.Blog
		err  error
	)
	if _, parseErr := uuid.Parse(identifier); parseErr == nil {
		blog, err = s.repo.FindByID(ctx, identifier)
	} else {
		blog, err = s.repo.FindBySlug(ctx, strings.ToLower(identifier))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	if blog == nil || !canView(blog, viewer) {
		return nil, model.NewBlogNotFoundError()
	}

	if blog.Status == model.BlogStatusPublished {
		views, err := s.repo.IncrementViews(ctx, blog.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to increment views: %w", err)
		}
		blog.Views = views
	}

	if viewer != nil {
		liked, err := s.repo.HasLiked(ctx, blog.ID, viewer.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to check like: %w", err)
		}
		blog.IsLiked = liked
	}
	return blog, nil
}

// Create はブログを作成する。
// 一般ユーザーが指定できるステータスはDRAFTとPENDINGのみで、featuredは管理者のみ。
func (s *Service) Create(ctx context.Context, author *model.AuthContext, in CreateInput) (*model.Blog, error) {
	if in.Status == "" {
		in.Status = model.BlogStatusDraft
	}
	if !in.Status.Valid() {
		return nil, invalidStatusError()
	}
	if !author.IsAdmin() && (!in.Status.AuthorSettable() || in.Featured) {
		return nil, model.NewInsufficientPermissionsError()
	}
	if err := validateCoverImage(in.CoverImage); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	blog := &model.Blog{
		ID:         uuid.New().String(),
		Title:      strings.TrimSpace(in.Title),
		Category:   strings.TrimSpace(in.Category),
		Tags:       normalizeTags(in.Tags),
		CoverImage: strings.TrimSpace(in.CoverImage),
		Status:     model.BlogStatusDraft,
		Featured:   in.Featured,
		AuthorID:   author.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.setContent(blog, in.Content, &in.Excerpt)

	if in.Status != model.BlogStatusDraft {
		if err := s.applyStatus(blog, in.Status, in.ScheduledAt, now); err != nil {
			return nil, err
		}
	}

	if err := s.createWithUniqueSlug(ctx, blog); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, blog, blog.Status != model.BlogStatusDraft)
	return blog, nil
}

func (s *Service) createWithUniqueSlug(ctx context.Context, blog *model.Blog) error {
	base := Slugify(blog.Title)
	for attempt := 0; attempt < maxSlugAttempts; attempt++ {
		existing, err := s.repo.ListSlugs(ctx, base, "")
		if err != nil {
			return fmt.Errorf("failed to list slugs: %w", err)
		}
		blog.Slug = UniqueSlug(base, existing)

		err = s.repo.Create(ctx, blog)
		if err == nil {
			return nil
		}
		var dup *repository.DuplicateError
		if !errors.As(err, &dup) || dup.Field() != "slug" {
			return fmt.Errorf("failed to create blog: %w", err)
		}
	}
	return model.NewConflictError("a blog with a similar title is being created, please retry")
}

// Update はブログを更新する。著者本人または管理者のみ。
// タイトルが変わった場合はスラッグを再生成する。
func (s *Service) Update(ctx context.Context, id string, viewer *model.AuthContext, in UpdateInput) (*model.Blog, error) {
	blog, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	if blog == nil {
		return nil, model.NewBlogNotFoundError()
	}
	if !canModify(blog, viewer) {
		return nil, model.NewAccessDeniedError("You can only edit your own blogs")
	}
	if !viewer.IsAdmin() {
		if in.Featured != nil || (in.Status != nil && !in.Status.AuthorSettable()) {
			return nil, model.NewInsufficientPermissionsError()
		}
	}
	if in.Status != nil && !in.Status.Valid() {
		return nil, invalidStatusError()
	}
	if in.CoverImage != nil {
		if err := validateCoverImage(*in.CoverImage); err != nil {
			return nil, err
		}
		blog.CoverImage = strings.TrimSpace(*in.CoverImage)
	}

	titleChanged := false
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		titleChanged = title != blog.Title
		blog.Title = title
	}
	if in.Content != nil {
		s.setContent(blog, *in.Content, in.Excerpt)
	} else if in.Excerpt != nil {
		s.setContent(blog, blog.Content, in.Excerpt)
	}
	if in.Category != nil {
		blog.Category = strings.TrimSpace(*in.Category)
	}
	if in.Tags != nil {
		blog.Tags = normalizeTags(in.Tags)
	}
	if in.Featured != nil {
		blog.Featured = *in.Featured
	}

	now := s.now().UTC()
	previous := blog.Status
	if in.Status != nil && *in.Status != blog.Status {
		if err := s.applyStatus(blog, *in.Status, nil, now); err != nil {
			return nil, err
		}
	}

	if titleChanged {
		existing, err := s.repo.ListSlugs(ctx, Slugify(blog.Title), blog.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list slugs: %w", err)
		}
		blog.Slug = UniqueSlug(Slugify(blog.Title), existing)
	}
	blog.UpdatedAt = now

	if err := s.repo.Update(ctx, blog); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, model.NewConflictError("slug already in use, please retry")
		}
		return nil, fmt.Errorf("failed to update blog: %w", err)
	}

	statusChanged := previous != blog.Status
	if statusChanged && viewer.IsAdmin() && viewer.UserID != blog.AuthorID {
		s.notifyStatus(ctx, blog, "")
	}
	s.afterWrite(ctx, blog, statusChanged || blog.Status == model.BlogStatusPublished)
	return blog, nil
}

// SetStatus は管理者がブログのステータスを変更する。
// PUBLISHED, REJECTED, SCHEDULEDへの変更は著者に通知する。
func (s *Service) SetStatus(ctx context.Context, id string, in StatusInput) (*model.Blog, error) {
	if !in.Status.Valid() {
		return nil, invalidStatusError()
	}
	blog, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	if blog == nil {
		return nil, model.NewBlogNotFoundError()
	}

	now := s.now().UTC()
	if err := s.applyStatus(blog, in.Status, in.ScheduledAt, now); err != nil {
		return nil, err
	}
	blog.UpdatedAt = now

	if err := s.repo.Update(ctx, blog); err != nil {
		return nil, fmt.Errorf("failed to update blog status: %w", err)
	}

	s.notifyStatus(ctx, blog, in.Reason)
	s.afterWrite(ctx, blog, true)
	return blog, nil
}

// applyStatus はステータス遷移に伴う日時を設定する。
func (s *Service) applyStatus(blog *model.Blog, status model.BlogStatus, scheduledAt *time.Time, now time.Time) error {
	switch status {
	case model.BlogStatusPublished:
		if blog.Status != model.BlogStatusPublished || blog.PublishedAt == nil {
			blog.PublishedAt = &now
		}
		blog.ScheduledAt = nil
	case model.BlogStatusScheduled:
		if scheduledAt == nil || !scheduledAt.After(now) {
			return model.NewValidationError("", model.FieldError{
				Field:   "scheduledAt",
				Message: "scheduledAt must be a future time",
			})
		}
		at := scheduledAt.UTC()
		blog.ScheduledAt = &at
	default:
		blog.ScheduledAt = nil
	}
	blog.Status = status
	if s.recorder != nil {
		s.recorder.RecordBlogStatusTransition(string(status))
	}
	return nil
}

func (s *Service) notifyStatus(ctx context.Context, blog *model.Blog, reason string) {
	var n *model.Notification
	switch blog.Status {
	case model.BlogStatusPublished:
		n = &model.Notification{
			Type:    model.NotificationBlogPublished,
			Title:   "Blog published",
			Message: fmt.Sprintf("Your blog %q has been approved and published.", blog.Title),
		}
	case model.BlogStatusRejected:
		msg := fmt.Sprintf("Your blog %q was not approved.", blog.Title)
		if reason = strings.TrimSpace(reason); reason != "" {
			msg += " Reason: " + reason
		}
		n = &model.Notification{
			Type:    model.NotificationBlogRejected,
			Title:   "Blog rejected",
			Message: msg,
		}
	case model.BlogStatusScheduled:
		n = &model.Notification{
			Type:    model.NotificationBlogScheduled,
			Title:   "Blog scheduled",
			Message: fmt.Sprintf("Your blog %q is scheduled for %s.", blog.Title, blog.ScheduledAt.Format(time.RFC3339)),
		}
	default:
		return
	}
	n.UserID = blog.AuthorID
	blogID := blog.ID
	n.BlogID = &blogID
	s.notify(ctx, n)
}

func (s *Service) notify(ctx context.Context, n *model.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("failed to create notification",
			slog.String("type", string(n.Type)),
			slog.String("user_id", n.UserID),
			slog.String("error", err.Error()),
		)
	}
}

// Delete はブログを削除する。著者本人または管理者のみ。
func (s *Service) Delete(ctx context.Context, id string, viewer *model.AuthContext) error {
	blog, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find blog: %w", err)
	}
	if blog == nil {
		return model.NewBlogNotFoundError()
	}
	if !canModify(blog, viewer) {
		return model.NewAccessDeniedError("You can only delete your own blogs")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewBlogNotFoundError()
		}
		return fmt.Errorf("failed to delete blog: %w", err)
	}

	if s.searcher != nil && s.searcher.Healthy() {
		if err := s.searcher.DeleteBlog(id); err != nil {
			s.logger.Warn("failed to remove blog from search index", slog.String("blog_id", id), slog.String("error", err.Error()))
		}
	}
	s.invalidateTrending(ctx)
	return nil
}

// ToggleLike はいいねを付け外しし、公開済みならトレンドスコアを更新する。
func (s *Service) ToggleLike(ctx context.Context, id string, viewer *model.AuthContext) (*model.LikeResult, error) {
	blog, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	if blog == nil || !canView(blog, viewer) {
		return nil, model.NewBlogNotFoundError()
	}

	result, err := s.repo.ToggleLike(ctx, id, viewer.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewBlogNotFoundError()
		}
		return nil, fmt.Errorf("failed to toggle like: %w", err)
	}
	if s.recorder != nil {
		s.recorder.RecordBlogLike(result.Liked)
	}

	blog.LikesCount = result.LikesCount
	s.refreshTrendingScore(ctx, blog)
	return result, nil
}

// RefreshTrendingScore はブログのトレンドスコアを現在の数値で再計算する。
// コメント数の変化時にコメントサービスから呼ばれる。
func (s *Service) RefreshTrendingScore(ctx context.Context, blogID string) {
	blog, err := s.repo.FindByID(ctx, blogID)
	if err != nil || blog == nil {
		return
	}
	s.refreshTrendingScore(ctx, blog)
}

func (s *Service) refreshTrendingScore(ctx context.Context, blog *model.Blog) {
	if blog.Status != model.BlogStatusPublished || blog.PublishedAt == nil {
		return
	}
	score := TrendingScore(blog.Views, blog.LikesCount, blog.CommentsCount, *blog.PublishedAt, s.now())
	if err := s.repo.UpdateTrendingScore(ctx, blog.ID, score); err != nil {
		s.logger.Warn("failed to update trending score", slog.String("blog_id", blog.ID), slog.String("error", err.Error()))
	}
}

// Trending はトレンドスコア上位の公開済みブログを返す。結果はキャッシュする。
func (s *Service) Trending(ctx context.Context, limit int) ([]*model.Blog, error) {
	if limit < 1 {
		limit = DefaultTrendingLimit
	}
	if limit > MaxTrendingLimit {
		limit = MaxTrendingLimit
	}
	key := fmt.Sprintf("%s%d", trendingCachePrefix, limit)

	if s.cache != nil {
		var cached []*model.Blog
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("trending cache read failed", slog.String("error", err.Error()))
		} else if hit {
			return cached, nil
		}
	}

	blogs, _, err := s.repo.List(ctx, model.BlogFilter{Sort: model.BlogSortTrending}, model.Page{Page: 1, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list trending blogs: %w", err)
	}
	if blogs == nil {
		blogs = []*model.Blog{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, blogs); err != nil {
			s.logger.Warn("trending cache write failed", slog.String("error", err.Error()))
		}
	}
	return blogs, nil
}

// Feed はRSS用に最新の公開済みブログを返す。
func (s *Service) Feed(ctx context.Context) ([]*model.Blog, error) {
	blogs, _, err := s.repo.List(ctx, model.BlogFilter{Sort: model.BlogSortLatest}, model.Page{Page: 1, Limit: FeedSize})
	if err != nil {
		return nil, fmt.Errorf("failed to list feed blogs: %w", err)
	}
	return blogs, nil
}

// PublishDueScheduled は公開時刻を過ぎた予約ブログを公開し、著者に通知する。
// 公開した件数を返す。
func (s *Service) PublishDueScheduled(ctx context.Context) (int, error) {
	published, err := s.repo.PublishDueScheduled(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to publish scheduled blogs: %w", err)
	}
	if len(published) == 0 {
		return 0, nil
	}

	for _, b := range published {
		s.notifyStatus(ctx, b, "")
		s.indexByID(ctx, b.ID)
	}
	if s.recorder != nil {
		s.recorder.RecordScheduledPublished(len(published))
	}
	s.invalidateTrending(ctx)
	return len(published), nil
}

// RecomputeTrending は全公開済みブログのトレンドスコアを再計算する。
func (s *Service) RecomputeTrending(ctx context.Context) (int64, error) {
	n, err := s.repo.RecomputeTrendingScores(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute trending scores: %w", err)
	}
	s.invalidateTrending(ctx)
	return n, nil
}

// setContent は本文をサニタイズし、読了時間と抜粋を設定する。
// excerptがnilなら既存の抜粋を保ち、空文字なら本文から生成する。
// ReindexSearch は検索インデックスが古い場合に全ブログを再登録し、登録件数を返す。
// 可視性の絞り込みは検索後のSQLで行うため、非公開のブログも登録する。
func (s *Service) ReindexSearch(ctx context.Context) (int, error) {
	if s.searcher == nil || !s.searcher.NeedsReindex() {
		return 0, nil
	}

	filter := model.BlogFilter{ViewerIsAdmin: true, Sort: model.BlogSortOldest}
	indexed := 0
	for p := 1; ; p++ {
		page := model.NewPage(p, reindexBatch)
		blogs, total, err := s.repo.List(ctx, filter, page)
		if err != nil {
			s.searcher.MarkStale()
			return indexed, fmt.Errorf("failed to list blogs for reindex: %w", err)
		}
		if err := s.searcher.IndexBlogs(blogs); err != nil {
			s.searcher.MarkStale()
			return indexed, fmt.Errorf("failed to reindex blogs: %w", err)
		}
		indexed += len(blogs)
		if len(blogs) < page.Limit || page.Page*page.Limit >= total {
			break
		}
	}
	return indexed, nil
}

func (s *Service) setContent(blog *model.Blog, content string, excerpt *string) {
	blog.Content = s.sanitizer.SanitizeRich(content)
	blog.ReadTime = ReadTime(blog.Content)
	if excerpt == nil {
		if blog.Excerpt == "" {
			blog.Excerpt = DeriveExcerpt(blog.Content)
		}
		return
	}
	blog.Excerpt = s.sanitizer.SanitizeStrict(*excerpt)
	if blog.Excerpt == "" {
		blog.Excerpt = DeriveExcerpt(blog.Content)
	}
}

// afterWrite は検索インデックスを更新し、必要ならトレンドキャッシュを破棄する。
func (s *Service) afterWrite(ctx context.Context, blog *model.Blog, invalidate bool) {
	if s.searcher != nil && s.searcher.Healthy() {
		if err := s.searcher.IndexBlog(blog); err != nil {
			s.logger.Warn("failed to index blog", slog.String("blog_id", blog.ID), slog.String("error", err.Error()))
		}
	}
	if invalidate {
		s.invalidateTrending(ctx)
	}
}

func (s *Service) indexByID(ctx context.Context, id string) {
	if s.searcher == nil || !s.searcher.Healthy() {
		return
	}
	blog, err := s.repo.FindByID(ctx, id)
	if err != nil || blog == nil {
		return
	}
	if err := s.searcher.IndexBlog(blog); err != nil {
		s.logger.Warn("failed to index blog", slog.String("blog_id", id), slog.String("error", err.Error()))
	}
}

func (s *Service) invalidateTrending(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, trendingCachePrefix); err != nil {
		s.logger.Warn("failed to invalidate trending cache", slog.String("error", err.Error()))
	}
}

func validateCoverImage(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if err := security.ValidatePublicURL(raw); err != nil {
		return model.NewValidationError("", model.FieldError{Field: "coverImage", Message: err.Error()})
	}
	return nil
}

func invalidStatusError() *model.APIError {
	return model.NewValidationError("", model.FieldError{
		Field:   "status",
		Message: "status must be one of DRAFT, PENDING, PUBLISHED, REJECTED, SCHEDULED",
	})
}

// normalizeTags は前後の空白を除き、小文字化し、重複と空要素を取り除く。
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
