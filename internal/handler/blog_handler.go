package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogflow/internal/blog"
	"github.com/hitoshi/blogflow/internal/middleware"
	"github.com/hitoshi/blogflow/internal/model"
)

// BlogServiceInterface はブログハンドラーが必要とするサービスインターフェース。
type BlogServiceInterface interface {
	List(ctx context.Context, filter model.BlogFilter, page model.Page, viewer *model.AuthContext) (*blog.ListResult, error)
	Get(ctx context.Context, identifier string, viewer *model.AuthContext) (*model.Blog, error)
	Create(ctx context.Context, author *model.AuthContext, in blog.CreateInput) (*model.Blog, error)
	Update(ctx context.Context, id string, viewer *model.AuthContext, in blog.UpdateInput) (*model.Blog, error)
	SetStatus(ctx context.Context, id string, in blog.StatusInput) (*model.Blog, error)
	Delete(ctx context.Context, id string, viewer *model.AuthContext) error
	ToggleLike(ctx context.Context, id string, viewer *model.AuthContext) (*model.LikeResult, error)
	Trending(ctx context.Context, limit int) ([]*model.Blog, error)
	Feed(ctx context.Context) ([]*model.Blog, error)
}

// BlogHandler はブログのHTTPハンドラー。
type BlogHandler struct {
	errorResponder
	service BlogServiceInterface
	channel blog.FeedChannel
	now     func() time.Time
}

// NewBlogHandler はBlogHandlerを生成する。channelはRSSフィードのチャンネル情報。
func NewBlogHandler(service BlogServiceInterface, channel blog.FeedChannel, cfg ErrorConfig) *BlogHandler {
	return &BlogHandler{
		errorResponder: newErrorResponder(cfg),
		service:        service,
		channel:        channel,
		now:            time.Now,
	}
}

const blogStatuses = "DRAFT PENDING PUBLISHED REJECTED SCHEDULED"

type createBlogRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Content     string     `json:"content" validate:"required"`
	Excerpt     string     `json:"excerpt" validate:"omitempty,max=500"`
	Category    string     `json:"category" validate:"omitempty,max=50"`
	Tags        []string   `json:"tags" validate:"omitempty,max=10,dive,required,max=30"`
	CoverImage  string     `json:"coverImage" validate:"omitempty,max=500"`
	Status      string     `json:"status" validate:"omitempty,oneof=DRAFT PENDING PUBLISHED REJECTED SCHEDULED"`
	Featured    bool       `json:"featured"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

type updateBlogRequest struct {
	Title      *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Content    *string  `json:"content" validate:"omitempty,min=1"`
	Excerpt    *string  `json:"excerpt" validate:"omitempty,max=500"`
	Category   *string  `json:"category" validate:"omitempty,max=50"`
	Tags       []string `json:"tags" validate:"omitempty,max=10,dive,required,max=30"`
	CoverImage *string  `json:"coverImage" validate:"omitempty,max=500"`
	Status     *string  `json:"status" validate:"omitempty,oneof=DRAFT PENDING PUBLISHED REJECTED SCHEDULED"`
	Featured   *bool    `json:"featured"`
}

type setStatusRequest struct {
	Status      string     `json:"status" validate:"required,oneof=DRAFT PENDING PUBLISHED REJECTED SCHEDULED"`
	Reason      string     `json:"reason" validate:"omitempty,max=1000"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

type likeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

// filterFromQuery は一覧のクエリパラメータから検索条件を作る。
func filterFromQuery(r *http.Request) (model.BlogFilter, *model.APIError) {
	q := r.URL.Query()
	filter := model.BlogFilter{
		Category: strings.TrimSpace(q.Get("category")),
		AuthorID: strings.TrimSpace(q.Get("authorId")),
		Search:   strings.TrimSpace(q.Get("search")),
		Sort:     model.ParseBlogSort(q.Get("sort")),
	}

	for _, raw := range q["tags"] {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.Tags = append(filter.Tags, strings.ToLower(tag))
			}
		}
	}

	if s := q.Get("status"); s != "" {
		status := model.BlogStatus(strings.ToUpper(s))
		if !status.Valid() {
			return filter, model.NewValidationError("", model.FieldError{
				Field:   "status",
				Message: "status must be one of: " + blogStatuses,
			})
		}
		filter.Status = &status
	}

	if f := q.Get("featured"); f != "" {
		featured, err := strconv.ParseBool(f)
		if err != nil {
			return filter, model.NewValidationError("", model.FieldError{Field: "featured", Message: "featured must be true or false"})
		}
		filter.Featured = &featured
	}

	return filter, nil
}

// List はブログ一覧を返す。
// GET /api/blogs
func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := filterFromQuery(r)
	if apiErr != nil {
		writeBadRequest(w, apiErr)
		return
	}

	result, err := h.service.List(r.Context(), filter, pageFromQuery(r), middleware.AuthFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeList(w, toBlogResponses(result.Blogs), result.Pagination)
}

// Trending はトレンドのブログを返す。
// GET /api/blogs/trending
func (h *BlogHandler) Trending(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	blogs, err := h.service.Trending(r.Context(), limit)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, toBlogResponses(blogs), "")
}

// Get はUUIDまたはスラッグでブログを取得する。
// GET /api/blogs/{identifier}
func (h *BlogHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.service.Get(r.Context(), chi.URLParam(r, "identifier"), middleware.AuthFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, toBlogResponse(b, true), "")
}

// Create はブログを作成する。
// POST /api/blogs
func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	var req createBlogRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		writeBadRequest(w, apiErr)
		return
	}

	b, err := h.service.Create(r.Context(), authCtx, blog.CreateInput{
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		Category:    req.Category,
		Tags:        req.Tags,
		CoverImage:  req.CoverImage,
		Status:      model.BlogStatus(req.Status),
		Featured:    req.Featured,
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, toBlogResponse(b, true), "Blog created")
}

// Update はブログを更新する。
// PUT /api/blogs/{id}
func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	var req updateBlogRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		writeBadRequest(w, apiErr)
		return
	}

	in := blog.UpdateInput{
		Title:      req.Title,
		Content:    req.Content,
		Excerpt:    req.Excerpt,
		Category:   req.Category,
		Tags:       req.Tags,
		CoverImage: req.CoverImage,
		Featured:   req.Featured,
	}
	if req.Status != nil {
		status := model.BlogStatus(*req.Status)
		in.Status = &status
	}

	b, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), authCtx, in)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, toBlogResponse(b, true), "Blog updated")
}

// SetStatus は管理者がブログのステータスを変更する。
// PUT /api/blogs/{id}/status
func (h *BlogHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		writeBadRequest(w, apiErr)
		return
	}

	b, err := h.service.SetStatus(r.Context(), chi.URLParam(r, "id"), blog.StatusInput{
		Status:      model.BlogStatus(req.Status),
		Reason:      strings.TrimSpace(req.Reason),
		ScheduledAt: req.ScheduledAt,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, toBlogResponse(b, false), "Blog status updated")
}

// Delete はブログを削除する。
// DELETE /api/blogs/{id}
func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), authCtx); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Blog deleted")
}

// ToggleLike はいいねを付け外しする。
// POST /api/blogs/{id}/like
func (h *BlogHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	result, err := h.service.ToggleLike(r.Context(), chi.URLParam(r, "id"), authCtx)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, likeResponse{Liked: result.Liked, LikesCount: result.LikesCount}, "")
}

// RSS は最新の公開ブログのRSS 2.0フィードを返す。
// GET /feed.xml
func (h *BlogHandler) RSS(w http.ResponseWriter, r *http.Request) {
	blogs, err := h.service.Feed(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if err := blog.WriteRSS(w, h.channel, blogs, h.now()); err != nil {
		h.logger.Error("failed to write rss feed", slog.String("error", err.Error()))
	}
}
