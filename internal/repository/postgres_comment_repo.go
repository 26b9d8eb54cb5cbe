package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/blogflow/internal/model"
	"github.com/lib/pq"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

const commentColumns = `c.id, c.content, c.blog_id, c.user_id, c.parent_id, c.created_at, c.updated_at,
	u.username, u.name, u.avatar`

const commentFrom = ` FROM comments c JOIN users u ON u.id = c.user_id`

func scanComment(row rowScanner) (*model.Comment, error) {
	c := &model.Comment{}
	var parentID sql.NullString
	author := &model.UserSummary{}
	err := row.Scan(
		&c.ID, &c.Content, &c.BlogID, &c.UserID, &parentID, &c.CreatedAt, &c.UpdatedAt,
		&author.Username, &author.Name, &author.Avatar,
	)
	if err != nil {
		return nil, err
	}
	c.ParentID = stringPtr(parentID)
	author.ID = c.UserID
	c.Author = author
	return c, nil
}

func scanComments(rows *sql.Rows) ([]*model.Comment, error) {
	defer rows.Close()

	comments := []*model.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// FindByID は指定IDのコメントを取得する。見つからない場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	if !isValidUUID(id) {
		return nil, nil
	}
	c, err := scanComment(r.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+commentFrom+` WHERE c.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	return c, nil
}

// ListTopLevel はブログのトップレベルコメントを新しい順に返す。
func (r *PostgresCommentRepo) ListTopLevel(ctx context.Context, blogID string, page model.Page) ([]*model.Comment, int, error) {
	if !isValidUUID(blogID) {
		return []*model.Comment{}, 0, nil
	}

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM comments WHERE blog_id = $1 AND parent_id IS NULL`,
		blogID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count comments: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commentColumns+commentFrom+`
		 WHERE c.blog_id = $1 AND c.parent_id IS NULL
		 ORDER BY c.created_at DESC, c.id DESC
		 LIMIT $2 OFFSET $3`,
		blogID, page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list comments: %w", err)
	}
	comments, err := scanComments(rows)
	if err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// ListReplies は指定した親コメントへの返信を古い順に返す。
func (r *PostgresCommentRepo) ListReplies(ctx context.Context, parentIDs []string) ([]*model.Comment, error) {
	ids := make([]string, 0, len(parentIDs))
	for _, id := range parentIDs {
		if isValidUUID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []*model.Comment{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commentColumns+commentFrom+`
		 WHERE c.parent_id = ANY($1::uuid[])
		 ORDER BY c.created_at ASC, c.id ASC`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list replies: %w", err)
	}
	return scanComments(rows)
}

// Create はコメントを作成し、ブログのcomments_countを加算する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		// ブログ行を先にロックし、Deleteとロック順序を揃える
		if _, err := tx.ExecContext(ctx,
			`UPDATE blogs SET comments_count = comments_count + 1 WHERE id = $1`,
			comment.BlogID,
		); err != nil {
			return fmt.Errorf("failed to increment comments count: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO comments (id, content, blog_id, user_id, parent_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			comment.ID, comment.Content, comment.BlogID, comment.UserID,
			nullStringPtr(comment.ParentID), comment.CreatedAt, comment.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert comment: %w", err)
		}
		return nil
	})
}

// UpdateContent はコメント本文を更新する。
func (r *PostgresCommentRepo) UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) error {
	if !isValidUUID(id) {
		return fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`,
		id, content, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return requireAffected(result, "comment", id)
}

// Delete はコメントとその返信を削除し、削除件数だけcomments_countを減算する。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id string) (int, error) {
	if !isValidUUID(id) {
		return 0, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	var deleted int
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var blogID string
		err := tx.QueryRowContext(ctx,
			`SELECT blog_id FROM comments WHERE id = $1`,
			id,
		).Scan(&blogID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("comment %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to find comment: %w", err)
		}

		// ブログ行のロック中は同じブログへの返信追加が待たされるため、削除件数と集計がずれない
		if _, err := tx.ExecContext(ctx,
			`SELECT 1 FROM blogs WHERE id = $1 FOR UPDATE`,
			blogID,
		); err != nil {
			return fmt.Errorf("failed to lock blog: %w", err)
		}
		var locked bool
		err = tx.QueryRowContext(ctx,
			`SELECT true FROM comments WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&locked)
		if err == sql.ErrNoRows {
			return fmt.Errorf("comment %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock comment: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM comments WHERE id = $1 OR parent_id = $1`,
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to delete comment: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted = int(n)

		if _, err := tx.ExecContext(ctx,
			`UPDATE blogs SET comments_count = GREATEST(comments_count - $2, 0) WHERE id = $1`,
			blogID, deleted,
		); err != nil {
			return fmt.Errorf("failed to decrement comments count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
