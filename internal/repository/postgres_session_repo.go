package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blogflow/internal/model"
)

// PostgresRefreshSessionRepo はPostgreSQLを使用したリフレッシュセッションリポジトリ。
// IDにはリフレッシュトークンjtiのハッシュを保存する。
type PostgresRefreshSessionRepo struct {
	db *sql.DB
}

// NewPostgresRefreshSessionRepo はPostgresRefreshSessionRepoを生成する。
func NewPostgresRefreshSessionRepo(db *sql.DB) *PostgresRefreshSessionRepo {
	return &PostgresRefreshSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresRefreshSessionRepo) Create(ctx context.Context, session *model.RefreshSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_sessions (id, user_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh session: %w", err)
	}
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *PostgresRefreshSessionRepo) FindByID(ctx context.Context, id string) (*model.RefreshSession, error) {
	session := &model.RefreshSession{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at
		 FROM refresh_sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.UserID, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh session: %w", err)
	}

	return session, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresRefreshSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete refresh session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *PostgresRefreshSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user refresh sessions: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RefreshSessionRepository = (*PostgresRefreshSessionRepo)(nil)
