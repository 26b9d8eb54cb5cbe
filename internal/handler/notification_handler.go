package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogflow/internal/model"
	"github.com/hitoshi/blogflow/internal/notification"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
// 全操作は呼び出し元ユーザーの通知に限定される。
type NotificationServiceInterface interface {
	List(ctx context.Context, userID string, unreadOnly bool, page model.Page) (*notification.ListResult, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkUnread(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	DeleteAllRead(ctx context.Context, userID string) (int64, error)
}

// NotificationHandler は通知のHTTPハンドラー。
type NotificationHandler struct {
	errorResponder
	service NotificationServiceInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface, cfg ErrorConfig) *NotificationHandler {
	return &NotificationHandler{errorResponder: newErrorResponder(cfg), service: service}
}

type unreadCountResponse struct {
	Count int `json:"count"`
}

type affectedResponse struct {
	Count int64 `json:"count"`
}

// List は通知一覧を新しい順で返す。?unreadOnly=true で未読のみ。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unreadOnly"))

	result, err := h.service.List(r.Context(), authCtx.UserID, unreadOnly, pageFromQuery(r))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	items := make([]notificationResponse, len(result.Notifications))
	for i, n := range result.Notifications {
		items[i] = toNotificationResponse(n)
	}
	writeList(w, items, result.Pagination)
}

// UnreadCount は未読件数を返す。
// GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	count, err := h.service.UnreadCount(r.Context(), authCtx.UserID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, unreadCountResponse{Count: count}, "")
}

// MarkRead は通知を既読にする。
// PUT /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.updateOne(w, r, h.service.MarkRead, "Notification marked as read")
}

// MarkUnread は通知を未読に戻す。
// PUT /api/notifications/{id}/unread
func (h *NotificationHandler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	h.updateOne(w, r, h.service.MarkUnread, "Notification marked as unread")
}

// Delete は通知を削除する。
// DELETE /api/notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.updateOne(w, r, h.service.Delete, "Notification deleted")
}

func (h *NotificationHandler) updateOne(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, userID string) error, message string) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	if err := op(r.Context(), chi.URLParam(r, "id"), authCtx.UserID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, nil, message)
}

// MarkAllRead は全ての未読通知を既読にする。
// PUT /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.service.MarkAllRead, "All notifications marked as read")
}

// DeleteAllRead は既読通知を全て削除する。
// DELETE /api/notifications/read
func (h *NotificationHandler) DeleteAllRead(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.service.DeleteAllRead, "Read notifications deleted")
}

func (h *NotificationHandler) bulk(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID string) (int64, error), message string) {
	authCtx := requireAuth(w, r)
	if authCtx == nil {
		return
	}

	n, err := op(r.Context(), authCtx.UserID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, affectedResponse{Count: n}, message)
}
