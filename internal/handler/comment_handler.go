package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogflow/internal/comment"
	"github.com/hitoshi/blogflow/internal/middleware"
	"github.com/hitoshi/blogflow/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	ListByBlog(ctx context.Context, blogID string, page model.Page, viewer *model.AuthContext) (*comment.ListResult, error)
	Create(ctx context.Context, viewer *model.AuthContext, in comment.CreateInput) (*model.Comment, error)
	Update(ctx context.Context, id string, viewer *model.AuthContext, content string) (*model.Comment, error)
	Delete(ctx context.Context, id string, viewer *model.AuthContext) (int, error)
}

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	errorResponder
	service CommentServiceInterface
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface, cfg ErrorConfig) *CommentHandler {
	return &CommentHandler{errorResponder: newErrorResponder(cfg), service: service}
}

type createCommentRequest struct {
	BlogID   string  `json:"blogId" validate:"required,uuid"`
	Content  string  `json:"content" validate:"required"`
	ParentID *string `json:"parentId" validate:"omitempty,uuid"`
}

type updateCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

type deleteCommentResponse struct {
	Deleted int `json:"deleted"`
}

// ListByBlog はブログのコメントを返信付きで返す。
// GET /api/comments/blog/{blogId}
func (h *CommentHandler) ListByBlog(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListByBlog(r.Context(), chi.URLParam(r, "blogId"), pageFromQuery(r), middleware.AuthFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	comments := make([]commentResponse, len(result.Comments))
	for i, c := range result.Comments {
		comments[i] = toCommentResponse(c)
	}
	writeList(w, comments, result.Pagination)
}

// Create はコメントまたは返信を作成する。
// POST /api/comments
func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	var req createCommentRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		writeBadRequest(w, apiErr)
		return
	}

	c, err := h.service.Create(r.Context(), authCtx, comment.CreateInput{
		BlogID:   req.BlogID,
		Content:  req.Content,
		ParentID: req.ParentID,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, toCommentResponse(c), "Comment created")
}

// Update はコメント本文を更新する。
// PUT /api/comments/{id}
func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	var req updateCommentRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		writeBadRequest(w, apiErr)
		return
	}

	c, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), authCtx, req.Content)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, toCommentResponse(c), "Comment updated")
}

// Delete はコメントを削除する。トップレベルコメントでは返信も削除される。
// DELETE /api/comments/{id}
func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	n, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), authCtx)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, deleteCommentResponse{Deleted: n}, "Comment deleted")
}
