// Package notification はユーザー通知の作成・配信・既読管理を提供する。
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/blogflow/internal/model"
	"github.com/hitoshi/blogflow/internal/repository"
)

// Publisher は作成済み通知をリアルタイム配信する。
type Publisher interface {
	PublishNotification(n *model.Notification) error
}

// Recorder は通知作成のメトリクスを記録する。
type Recorder interface {
	RecordNotificationCreated(notificationType string)
}

// ListResult は通知一覧の取得結果。
type ListResult struct {
	Notifications []*model.Notification
	Pagination    model.Pagination
}

// Service は通知のビジネスロジックを提供する。
type Service struct {
	repo      repository.NotificationRepository
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceを生成する。publisher, recorderはnil可。
func NewService(repo repository.NotificationRepository, publisher Publisher, recorder Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Notify は通知を保存し、配信する。
// 配信の失敗はログに残すのみで、保存が成功していればエラーを返さない。
func (s *Service) Notify(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	n.IsRead = false

	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordNotificationCreated(string(n.Type))
	}

	if s.publisher != nil {
		if err := s.publisher.PublishNotification(n); err != nil {
			s.logger.Warn("failed to publish notification",
				slog.String("notification_id", n.ID),
				slog.String("user_id", n.UserID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// List はユーザーの通知を新しい順に返す。
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, page model.Page) (*ListResult, error) {
	items, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if items == nil {
		items = []*model.Notification{}
	}
	return &ListResult{
		Notifications: items,
		Pagination:    page.Paginate(total),
	}, nil
}

// UnreadCount は未読通知数を返す。
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead は通知を既読にする。他人の通知や存在しない通知はNotificationNotFound。
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	return s.setRead(ctx, id, userID, true)
}

// MarkUnread は通知を未読に戻す。
func (s *Service) MarkUnread(ctx context.Context, id, userID string) error {
	return s.setRead(ctx, id, userID, false)
}

func (s *Service) setRead(ctx context.Context, id, userID string, read bool) error {
	ok, err := s.repo.SetRead(ctx, id, userID, read)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if !ok {
		return model.NewNotificationNotFoundError()
	}
	return nil
}

// MarkAllRead はユーザーの全通知を既読にし、更新件数を返す。
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return n, nil
}

// Delete は通知を削除する。
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	if !ok {
		return model.NewNotificationNotFoundError()
	}
	return nil
}

// DeleteAllRead は既読通知を全て削除し、削除件数を返す。
func (s *Service) DeleteAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete read notifications: %w", err)
	}
	return n, nil
}
