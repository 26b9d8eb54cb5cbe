package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/blogflow/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, username, password_hash, name, avatar, bio, website, twitter, github, linkedin,
	role, provider, articles_count, followers_count, total_views, total_likes, created_at, updated_at`

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var passwordHash sql.NullString
	var role, provider string
	err := row.Scan(
		&user.ID, &user.Email, &user.Username, &passwordHash, &user.Name, &user.Avatar,
		&user.Bio, &user.Website, &user.Twitter, &user.GitHub, &user.LinkedIn,
		&role, &provider, &user.ArticlesCount, &user.FollowersCount,
		&user.TotalViews, &user.TotalLikes, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = passwordHash.String
	user.Role = model.Role(role)
	user.Provider = model.AuthProvider(provider)
	return user, nil
}

// findOne は1行取得の共通処理。見つからない場合はnilを返す。
func (r *PostgresUserRepo) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+where,
		arg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `id = $1`, id)
}

// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `lower(email) = lower($1)`, email)
}

// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, `username = $1`, strings.ToLower(username))
}

// UsernameExists はユーザー名が使用済みかを返す。
func (r *PostgresUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, password_hash, name, avatar, role, provider, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.Email, user.Username, nullString(user.PasswordHash), user.Name, user.Avatar,
		string(user.Role), string(user.Provider), user.CreatedAt, user.UpdatedAt,
	)
	if dup := asDuplicate(err); dup != nil {
		return dup
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateRole はユーザーのロールを更新する。
func (r *PostgresUserRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`,
		id, string(role), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	return requireAffected(result, "user", id)
}

// UpdateProfile はプロフィール項目を更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET username = $2, name = $3, avatar = $4, bio = $5, website = $6,
		     twitter = $7, github = $8, linkedin = $9, updated_at = $10
		 WHERE id = $1`,
		user.ID, user.Username, user.Name, user.Avatar, user.Bio, user.Website,
		user.Twitter, user.GitHub, user.LinkedIn, user.UpdatedAt,
	)
	if dup := asDuplicate(err); dup != nil {
		return dup
	}
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return requireAffected(result, "user", user.ID)
}

// List はユーザー一覧を作成日時の降順で返す。
func (r *PostgresUserRepo) List(ctx context.Context, page model.Page) ([]*model.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, total, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 所有データはCASCADE削除されるため、他ユーザーのブログに残る集計値を先に差し引く。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT true FROM users WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock user: %w", err)
		}

		// いいね先の著者のtotal_likesを減算する
		if _, err := tx.ExecContext(ctx,
			`UPDATE users u
			 SET total_likes = GREATEST(u.total_likes - x.n, 0)
			 FROM (
			   SELECT b.author_id, COUNT(*) AS n
			   FROM blog_likes l JOIN blogs b ON b.id = l.blog_id
			   WHERE l.user_id = $1 AND b.author_id <> $1
			   GROUP BY b.author_id
			 ) x
			 WHERE u.id = x.author_id`,
			id,
		); err != nil {
			return fmt.Errorf("failed to decrement author total likes: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE blogs b
			 SET likes_count = GREATEST(b.likes_count - 1, 0)
			 FROM blog_likes l
			 WHERE l.blog_id = b.id AND l.user_id = $1 AND b.author_id <> $1`,
			id,
		); err != nil {
			return fmt.Errorf("failed to decrement likes count: %w", err)
		}

		// 本人のコメントと、それに付いた他ユーザーの返信がCASCADEで消える
		if _, err := tx.ExecContext(ctx,
			`UPDATE blogs b
			 SET comments_count = GREATEST(b.comments_count - x.n, 0)
			 FROM (
			   SELECT c.blog_id, COUNT(*) AS n
			   FROM comments c
			   LEFT JOIN comments p ON p.id = c.parent_id
			   WHERE c.user_id = $1 OR p.user_id = $1
			   GROUP BY c.blog_id
			 ) x
			 WHERE b.id = x.blog_id AND b.author_id <> $1`,
			id,
		); err != nil {
			return fmt.Errorf("failed to decrement comments count: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM users WHERE id = $1`,
			id,
		)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return requireAffected(result, "user", id)
	})
}

// requireAffected は更新件数が0の場合にErrNotFoundを返す。
func requireAffected(result sql.Result, entity, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
