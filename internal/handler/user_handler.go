package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogflow/internal/middleware"
	"github.com/hitoshi/blogflow/internal/model"
	"github.com/hitoshi/blogflow/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, in user.ProfileInput) (*model.User, error)
	// DeleteAccount はユーザーを削除する。所有するブログとコメントもCASCADE削除される。
	DeleteAccount(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, page model.Page) (*user.ListResult, error)
	SetRole(ctx context.Context, actor *model.AuthContext, userID string, role model.Role) (*model.User, error)
}

// UserHandler はプロフィールとユーザー管理のHTTPハンドラー。
type UserHandler struct {
	errorResponder
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, cfg ErrorConfig) *UserHandler {
	return &UserHandler{errorResponder: newErrorResponder(cfg), service: service}
}

type updateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Avatar   *string `json:"avatar" validate:"omitempty,max=500"`
	Bio      *string `json:"bio" validate:"omitempty,max=500"`
	Website  *string `json:"website" validate:"omitempty,max=500"`
	Twitter  *string `json:"twitter" validate:"omitempty,max=500"`
	GitHub   *string `json:"github" validate:"omitempty,max=500"`
	LinkedIn *string `json:"linkedin" validate:"omitempty,max=500"`
}

type setRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

// UpdateMe は本人のプロフィールを更新する。
// PUT /api/auth/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	var req updateProfileRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		writeBadRequest(w, apiErr)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), authCtx.UserID, user.ProfileInput{
		Username: req.Username,
		Name:     req.Name,
		Avatar:   req.Avatar,
		Bio:      req.Bio,
		Website:  req.Website,
		Twitter:  req.Twitter,
		GitHub:   req.GitHub,
		LinkedIn: req.LinkedIn,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, toUserResponse(u, true), "Profile updated")
}

// DeleteMe は退会処理を実行する。
// DELETE /api/auth/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), authCtx.UserID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, "Account deleted")
}

// GetProfile は公開プロフィールを返す。本人または管理者にはメールアドレスも返す。
// GET /api/users/{username}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	viewer := middleware.AuthFromContext(r.Context())
	includeEmail := viewer != nil && (viewer.IsAdmin() || viewer.UserID == u.ID)
	writeSuccess(w, http.StatusOK, toUserResponse(u, includeEmail), "")
}

// List は管理者向けにユーザー一覧を返す。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListUsers(r.Context(), pageFromQuery(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	users := make([]userResponse, len(result.Users))
	for i, u := range result.Users {
		users[i] = toUserResponse(u, true)
	}
	writeList(w, users, result.Pagination)
}

// SetRole はユーザーのロールを変更する。
// PUT /api/users/{id}/role
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	var req setRoleRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		writeBadRequest(w, apiErr)
		return
	}

	u, err := h.service.SetRole(r.Context(), authCtx, chi.URLParam(r, "id"), model.Role(req.Role))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, toUserResponse(u, true), "Role updated")
}
