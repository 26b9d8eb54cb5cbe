package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blogflow/internal/model"
)

// PostgresNotificationRepo はPostgreSQLを使用した通知リポジトリ。
type PostgresNotificationRepo struct {
	db *sql.DB
}

// NewPostgresNotificationRepo はPostgresNotificationRepoを生成する。
func NewPostgresNotificationRepo(db *sql.DB) *PostgresNotificationRepo {
	return &PostgresNotificationRepo{db: db}
}

// Create は通知を作成する。
func (r *PostgresNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, type, title, message, is_read, user_id, blog_id, comment_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, string(n.Type), n.Title, n.Message, n.IsRead, n.UserID,
		nullStringPtr(n.BlogID), nullStringPtr(n.CommentID), n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListByUser はユーザーの通知を新しい順に返す。
func (r *PostgresNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, page model.Page) ([]*model.Notification, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND (NOT $2 OR is_read = false)`,
		userID, unreadOnly,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, title, message, is_read, user_id, blog_id, comment_id, created_at
		 FROM notifications
		 WHERE user_id = $1 AND (NOT $2 OR is_read = false)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		userID, unreadOnly, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := []*model.Notification{}
	for rows.Next() {
		n := &model.Notification{}
		var typ string
		var blogID, commentID sql.NullString
		if err := rows.Scan(&n.ID, &typ, &n.Title, &n.Message, &n.IsRead, &n.UserID,
			&blogID, &commentID, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		n.BlogID = stringPtr(blogID)
		n.CommentID = stringPtr(commentID)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return notifications, total, nil
}

// CountUnread は未読件数を返す。
func (r *PostgresNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM notifications WHERE user_id = $1 AND is_read = false`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// SetRead は既読状態を設定する。所有者の通知が存在しない場合はfalseを返す。
func (r *PostgresNotificationRepo) SetRead(ctx context.Context, id, userID string, read bool) (bool, error) {
	if !isValidUUID(id) {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = $3 WHERE id = $1 AND user_id = $2`,
		id, userID, read,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update notification: %w", err)
	}
	return affectedAny(result)
}

// MarkAllRead はユーザーの未読通知をすべて既読にし、更新件数を返す。
func (r *PostgresNotificationRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

// Delete は通知を削除する。所有者の通知が存在しない場合はfalseを返す。
func (r *PostgresNotificationRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	if !isValidUUID(id) {
		return false, nil
	}
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete notification: %w", err)
	}
	return affectedAny(result)
}

// DeleteAllRead はユーザーの既読通知をすべて削除し、削除件数を返す。
func (r *PostgresNotificationRepo) DeleteAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND is_read = true`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete read notifications: %w", err)
	}
	return result.RowsAffected()
}

func affectedAny(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
