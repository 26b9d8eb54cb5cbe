// Package events はドメインイベントのメッセージング配信を提供する。
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/blogflow/internal/model"
	"github.com/nats-io/nats.go"
)

// notificationSubjectPrefix は通知イベントのサブジェクト接頭辞。
// 実際のサブジェクトは notifications.<userId>。
const notificationSubjectPrefix = "notifications."

// NotificationEvent は通知作成時に配信するペイロード。
type NotificationEvent struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	UserID    string  `json:"userId"`
	BlogID    *string `json:"blogId,omitempty"`
	CommentID *string `json:"commentId,omitempty"`
	Timestamp string  `json:"timestamp"`
}

// NewNotificationEvent は通知からイベントを組み立てる。
func NewNotificationEvent(n *model.Notification) NotificationEvent {
	return NotificationEvent{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		UserID:    n.UserID,
		BlogID:    n.BlogID,
		CommentID: n.CommentID,
		Timestamp: n.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// NotificationSubject はユーザーの通知サブジェクトを返す。
func NotificationSubject(userID string) string {
	return notificationSubjectPrefix + userID
}

// messagePublisher は*nats.Connの配信部分。
type messagePublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher はNATSへ通知イベントを配信する。
type NATSPublisher struct {
	conn   messagePublisher
	closer func()
}

// NewNATSPublisher はNATSに接続してPublisherを返す。
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("blogflow"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, closer: conn.Close}, nil
}

// PublishNotification は通知イベントを notifications.<userId> に配信する。
func (p *NATSPublisher) PublishNotification(n *model.Notification) error {
	data, err := json.Marshal(NewNotificationEvent(n))
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}
	if err := p.conn.Publish(NotificationSubject(n.UserID), data); err != nil {
		return fmt.Errorf("failed to publish notification event: %w", err)
	}
	return nil
}

// Close は接続を閉じる。
func (p *NATSPublisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}

// NopPublisher はNATS未設定時に使う何もしないPublisher。
type NopPublisher struct{}

// PublishNotification は何もしない。
func (NopPublisher) PublishNotification(*model.Notification) error { return nil }

// Close は何もしない。
func (NopPublisher) Close() {}
