package model

import "time"

// NotificationType は通知の発生イベント種別。
type NotificationType string

const (
	NotificationRoleChanged   NotificationType = "ROLE_CHANGED"
	NotificationBlogPublished NotificationType = "BLOG_PUBLISHED"
	NotificationBlogRejected  NotificationType = "BLOG_REJECTED"
	NotificationBlogScheduled NotificationType = "BLOG_SCHEDULED"
	NotificationComment       NotificationType = "COMMENT"
	NotificationReply         NotificationType = "REPLY"
)

// Notification はユーザーごとの通知を表す。
// 他の操作の副作用としてのみ作成される。
type Notification struct {
	ID        string
	Type      NotificationType
	Title     string
	Message   string
	IsRead    bool
	UserID    string
	BlogID    *string
	CommentID *string
	CreatedAt time.Time
}
