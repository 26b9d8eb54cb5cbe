package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/blogflow/internal/model"
	"github.com/lib/pq"
)

// PostgresBlogRepo はPostgreSQLを使用したブログリポジトリ。
type PostgresBlogRepo struct {
	db *sql.DB
}

// NewPostgresBlogRepo はPostgresBlogRepoを生成する。
func NewPostgresBlogRepo(db *sql.DB) *PostgresBlogRepo {
	return &PostgresBlogRepo{db: db}
}

// scheduledPublishBatch は1回の予約公開で処理する最大件数。
const scheduledPublishBatch = 100

const blogColumns = `b.id, b.title, b.excerpt, b.content, b.slug, b.category, b.tags, b.cover_image,
	b.status, b.featured, b.read_time, b.published_at, b.scheduled_at, b.views, b.likes_count,
	b.comments_count, b.trending_score, b.author_id, b.created_at, b.updated_at,
	u.username, u.name, u.avatar`

const blogFrom = ` FROM blogs b JOIN users u ON u.id = b.author_id`

func scanBlog(row rowScanner) (*model.Blog, error) {
	blog := &model.Blog{}
	var tags pq.StringArray
	var status string
	var publishedAt, scheduledAt sql.NullTime
	author := &model.UserSummary{}
	err := row.Scan(
		&blog.ID, &blog.Title, &blog.Excerpt, &blog.Content, &blog.Slug, &blog.Category, &tags, &blog.CoverImage,
		&status, &blog.Featured, &blog.ReadTime, &publishedAt, &scheduledAt, &blog.Views, &blog.LikesCount,
		&blog.CommentsCount, &blog.TrendingScore, &blog.AuthorID, &blog.CreatedAt, &blog.UpdatedAt,
		&author.Username, &author.Name, &author.Avatar,
	)
	if err != nil {
		return nil, err
	}
	blog.Tags = []string(tags)
	if blog.Tags == nil {
		blog.Tags = []string{}
	}
	blog.Status = model.BlogStatus(status)
	blog.PublishedAt = timePtr(publishedAt)
	blog.ScheduledAt = timePtr(scheduledAt)
	author.ID = blog.AuthorID
	blog.Author = author
	return blog, nil
}

// FindByID は指定IDのブログを著者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresBlogRepo) FindByID(ctx context.Context, id string) (*model.Blog, error) {
	if !isValidUUID(id) {
		return nil, nil
	}
	return r.findOne(ctx, `b.id = $1`, id)
}

// FindBySlug はスラッグでブログを取得する。見つからない場合はnilを返す。
func (r *PostgresBlogRepo) FindBySlug(ctx context.Context, slug string) (*model.Blog, error) {
	return r.findOne(ctx, `b.slug = $1`, slug)
}

func (r *PostgresBlogRepo) findOne(ctx context.Context, where string, arg any) (*model.Blog, error) {
	blog, err := scanBlog(r.db.QueryRowContext(ctx,
		`SELECT `+blogColumns+blogFrom+` WHERE `+where,
		arg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find blog: %w", err)
	}
	return blog, nil
}

// ListSlugs はbase自身とbase-N形式のスラッグを返す。excludeIDのブログは除外する。
func (r *PostgresBlogRepo) ListSlugs(ctx context.Context, base, excludeID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT slug FROM blogs
		 WHERE (slug = $1 OR slug LIKE $2 ESCAPE '\')
		   AND ($3 = '' OR id::text <> $3)`,
		base, escapeLike(base)+"-%", excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list slugs: %w", err)
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, fmt.Errorf("failed to scan slug: %w", err)
		}
		slugs = append(slugs, slug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slugs: %w", err)
	}
	return slugs, nil
}

// buildBlogWhere は一覧条件のWHERE句とバインド引数を組み立てる。
// 可視性条件は常に先頭に置く。
func buildBlogWhere(filter model.BlogFilter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case filter.ViewerIsAdmin:
	case filter.ViewerID != "":
		conds = append(conds, fmt.Sprintf("(b.status = 'PUBLISHED' OR b.author_id = %s)", arg(filter.ViewerID)))
	default:
		conds = append(conds, "b.status = 'PUBLISHED'")
	}

	if filter.Category != "" {
		conds = append(conds, "b.category = "+arg(filter.Category))
	}
	if len(filter.Tags) > 0 {
		conds = append(conds, "b.tags && "+arg(pq.Array(filter.Tags)))
	}
	if filter.Status != nil {
		conds = append(conds, "b.status = "+arg(string(*filter.Status)))
	}
	if filter.AuthorID != "" {
		conds = append(conds, "b.author_id = "+arg(filter.AuthorID))
	}
	if filter.Featured != nil {
		conds = append(conds, "b.featured = "+arg(*filter.Featured))
	}
	switch {
	case filter.IDs != nil:
		if len(filter.IDs) == 0 {
			conds = append(conds, "FALSE")
		} else {
			conds = append(conds, "b.id::text = ANY("+arg(pq.Array(filter.IDs))+")")
		}
	case filter.Search != "":
		p := arg("%" + escapeLike(filter.Search) + "%")
		conds = append(conds, fmt.Sprintf(
			"(b.title ILIKE %[1]s ESCAPE '\\' OR b.excerpt ILIKE %[1]s ESCAPE '\\' OR b.content ILIKE %[1]s ESCAPE '\\')", p))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// blogOrderBy は並び順に対応するORDER BY句を返す。
func blogOrderBy(sort model.BlogSort) string {
	switch sort {
	case model.BlogSortOldest:
		return " ORDER BY b.created_at ASC, b.id ASC"
	case model.BlogSortPopular:
		return " ORDER BY b.likes_count DESC, b.created_at DESC"
	case model.BlogSortViews:
		return " ORDER BY b.views DESC, b.created_at DESC"
	case model.BlogSortTrending:
		return " ORDER BY b.trending_score DESC, b.created_at DESC"
	default:
		return " ORDER BY b.created_at DESC, b.id DESC"
	}
}

// List はフィルタと可視性条件に一致するブログと総件数を返す。
func (r *PostgresBlogRepo) List(ctx context.Context, filter model.BlogFilter, page model.Page) ([]*model.Blog, int, error) {
	where, args := buildBlogWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*)`+blogFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count blogs: %w", err)
	}

	n := len(args)
	query := `SELECT ` + blogColumns + blogFrom + where + blogOrderBy(filter.Sort) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, page.Limit, page.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list blogs: %w", err)
	}
	defer rows.Close()

	blogs := make([]*model.Blog, 0, page.Limit)
	for rows.Next() {
		blog, err := scanBlog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan blog: %w", err)
		}
		blogs = append(blogs, blog)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate blogs: %w", err)
	}
	return blogs, total, nil
}

// Create はブログを作成し、著者のarticles_countを加算する。
func (r *PostgresBlogRepo) Create(ctx context.Context, blog *model.Blog) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO blogs (id, title, excerpt, content, slug, category, tags, cover_image, status,
			                    featured, read_time, published_at, scheduled_at, trending_score, author_id,
			                    created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			blog.ID, blog.Title, blog.Excerpt, blog.Content, blog.Slug, blog.Category, pq.Array(nonNilTags(blog.Tags)),
			blog.CoverImage, string(blog.Status), blog.Featured, blog.ReadTime, nullTime(blog.PublishedAt),
			nullTime(blog.ScheduledAt), blog.TrendingScore, blog.AuthorID, blog.CreatedAt, blog.UpdatedAt,
		)
		if dup := asDuplicate(err); dup != nil {
			return dup
		}
		if err != nil {
			return fmt.Errorf("failed to insert blog: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET articles_count = articles_count + 1 WHERE id = $1`,
			blog.AuthorID,
		); err != nil {
			return fmt.Errorf("failed to increment articles count: %w", err)
		}
		return nil
	})
}

// Update はブログの編集可能な列とステータス関連列を更新する。
func (r *PostgresBlogRepo) Update(ctx context.Context, blog *model.Blog) error {
	if !isValidUUID(blog.ID) {
		return fmt.Errorf("blog %s: %w", blog.ID, ErrNotFound)
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE blogs
		 SET title = $2, excerpt = $3, content = $4, slug = $5, category = $6, tags = $7,
		     cover_image = $8, status = $9, featured = $10, read_time = $11,
		     published_at = $12, scheduled_at = $13, updated_at = $14
		 WHERE id = $1`,
		blog.ID, blog.Title, blog.Excerpt, blog.Content, blog.Slug, blog.Category, pq.Array(nonNilTags(blog.Tags)),
		blog.CoverImage, string(blog.Status), blog.Featured, blog.ReadTime,
		nullTime(blog.PublishedAt), nullTime(blog.ScheduledAt), blog.UpdatedAt,
	)
	if dup := asDuplicate(err); dup != nil {
		return dup
	}
	if err != nil {
		return fmt.Errorf("failed to update blog: %w", err)
	}
	return requireAffected(result, "blog", blog.ID)
}

// Delete はブログを削除し、著者のarticles_countとtotal_likesを減算する。
func (r *PostgresBlogRepo) Delete(ctx context.Context, id string) error {
	if !isValidUUID(id) {
		return fmt.Errorf("blog %s: %w", id, ErrNotFound)
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var authorID string
		var likes int
		err := tx.QueryRowContext(ctx,
			`DELETE FROM blogs WHERE id = $1 RETURNING author_id, likes_count`,
			id,
		).Scan(&authorID, &likes)
		if err == sql.ErrNoRows {
			return fmt.Errorf("blog %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to delete blog: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET articles_count = GREATEST(articles_count - 1, 0),
			     total_likes = GREATEST(total_likes - $2, 0)
			 WHERE id = $1`,
			authorID, likes,
		); err != nil {
			return fmt.Errorf("failed to decrement author counters: %w", err)
		}
		return nil
	})
}

// IncrementViews は閲覧数と著者のtotal_viewsを1加算し、更新後の閲覧数を返す。
func (r *PostgresBlogRepo) IncrementViews(ctx context.Context, id string) (int64, error) {
	if !isValidUUID(id) {
		return 0, fmt.Errorf("blog %s: %w", id, ErrNotFound)
	}
	var views int64
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var authorID string
		err := tx.QueryRowContext(ctx,
			`UPDATE blogs SET views = views + 1 WHERE id = $1 RETURNING views, author_id`,
			id,
		).Scan(&views, &authorID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("blog %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to increment views: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET total_views = total_views + 1 WHERE id = $1`,
			authorID,
		); err != nil {
			return fmt.Errorf("failed to increment author views: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return views, nil
}

// ToggleLike はいいねを付け外しし、likes_countと著者のtotal_likesを同時に更新する。
// ブログ行をロックしてから判定するため、同一ユーザーの同時リクエストは直列化される。
// 挿入が競合した場合は差分0で「いいね済み」を返す。
func (r *PostgresBlogRepo) ToggleLike(ctx context.Context, blogID, userID string) (*model.LikeResult, error) {
	if !isValidUUID(blogID) {
		return nil, fmt.Errorf("blog %s: %w", blogID, ErrNotFound)
	}
	result := &model.LikeResult{}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var authorID string
		err := tx.QueryRowContext(ctx,
			`SELECT author_id FROM blogs WHERE id = $1 FOR UPDATE`,
			blogID,
		).Scan(&authorID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("blog %s: %w", blogID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock blog: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`DELETE FROM blog_likes WHERE blog_id = $1 AND user_id = $2`,
			blogID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete like: %w", err)
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		delta := 0
		if removed > 0 {
			delta = -1
		} else {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO blog_likes (blog_id, user_id) VALUES ($1, $2)
				 ON CONFLICT (blog_id, user_id) DO NOTHING`,
				blogID, userID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert like: %w", err)
			}
			inserted, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if inserted > 0 {
				delta = 1
			}
			result.Liked = true
		}

		if err := tx.QueryRowContext(ctx,
			`UPDATE blogs SET likes_count = GREATEST(likes_count + $2, 0) WHERE id = $1 RETURNING likes_count`,
			blogID, delta,
		).Scan(&result.LikesCount); err != nil {
			return fmt.Errorf("failed to update likes count: %w", err)
		}

		if delta != 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET total_likes = GREATEST(total_likes + $2, 0) WHERE id = $1`,
				authorID, delta,
			); err != nil {
				return fmt.Errorf("failed to update author likes: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HasLiked はユーザーがブログにいいね済みかを返す。
func (r *PostgresBlogRepo) HasLiked(ctx context.Context, blogID, userID string) (bool, error) {
	if !isValidUUID(blogID) || userID == "" {
		return false, nil
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM blog_likes WHERE blog_id = $1 AND user_id = $2)`,
		blogID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check like: %w", err)
	}
	return exists, nil
}

// UpdateTrendingScore はトレンドスコアを更新する。
func (r *PostgresBlogRepo) UpdateTrendingScore(ctx context.Context, id string, score float64) error {
	if !isValidUUID(id) {
		return fmt.Errorf("blog %s: %w", id, ErrNotFound)
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE blogs SET trending_score = $2 WHERE id = $1`,
		id, score,
	)
	if err != nil {
		return fmt.Errorf("failed to update trending score: %w", err)
	}
	return nil
}

// RecomputeTrendingScores は公開済み全ブログのトレンドスコアを再計算する。
// 式はblog.TrendingScoreと同じ。
func (r *PostgresBlogRepo) RecomputeTrendingScores(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE blogs
		 SET trending_score = (views + 3 * likes_count + 5 * comments_count)::float8
		     / power(GREATEST(EXTRACT(EPOCH FROM (now() - COALESCE(published_at, created_at))) / 3600, 0) + 2, 1.5)
		 WHERE status = 'PUBLISHED'`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute trending scores: %w", err)
	}
	return result.RowsAffected()
}

// PublishDueScheduled はscheduled_at <= nowの予約ブログを公開状態に更新し、更新したブログを返す。
func (r *PostgresBlogRepo) PublishDueScheduled(ctx context.Context, now time.Time) ([]*model.Blog, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE blogs
		 SET status = 'PUBLISHED', published_at = COALESCE(scheduled_at, $1), updated_at = $1
		 WHERE id IN (
		     SELECT id FROM blogs
		     WHERE status = 'SCHEDULED' AND scheduled_at <= $1
		     ORDER BY scheduled_at
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, title, slug, author_id, published_at`,
		now, scheduledPublishBatch,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to publish scheduled blogs: %w", err)
	}
	defer rows.Close()

	var blogs []*model.Blog
	for rows.Next() {
		blog := &model.Blog{Status: model.BlogStatusPublished}
		var publishedAt sql.NullTime
		if err := rows.Scan(&blog.ID, &blog.Title, &blog.Slug, &blog.AuthorID, &publishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan published blog: %w", err)
		}
		blog.PublishedAt = timePtr(publishedAt)
		blogs = append(blogs, blog)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate published blogs: %w", err)
	}
	return blogs, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// withTx はトランザクション内でfnを実行し、エラー時はロールバックする。
func withTx(ctx context.Context, db TxBeginner, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ BlogRepository = (*PostgresBlogRepo)(nil)
