package handler

import (
	"time"

	"github.com/hitoshi/blogflow/internal/model"
)

// authorResponse はブログやコメントに埋め込む著者情報。
type authorResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

func toAuthorResponse(s *model.UserSummary) *authorResponse {
	if s == nil {
		return nil
	}
	return &authorResponse{ID: s.ID, Username: s.Username, Name: s.Name, Avatar: s.Avatar}
}

// userResponse はユーザー情報のAPIレスポンス。
// Emailは本人と管理者にのみ返す。
type userResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email,omitempty"`
	Username       string    `json:"username"`
	Name           string    `json:"name"`
	Avatar         string    `json:"avatar"`
	Bio            string    `json:"bio"`
	Website        string    `json:"website"`
	Twitter        string    `json:"twitter"`
	GitHub         string    `json:"github"`
	LinkedIn       string    `json:"linkedin"`
	Role           string    `json:"role"`
	Provider       string    `json:"provider"`
	ArticlesCount  int       `json:"articlesCount"`
	FollowersCount int       `json:"followersCount"`
	TotalViews     int64     `json:"totalViews"`
	TotalLikes     int64     `json:"totalLikes"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toUserResponse(u *model.User, includeEmail bool) userResponse {
	resp := userResponse{
		ID:             u.ID,
		Username:       u.Username,
		Name:           u.Name,
		Avatar:         u.Avatar,
		Bio:            u.Bio,
		Website:        u.Website,
		Twitter:        u.Twitter,
		GitHub:         u.GitHub,
		LinkedIn:       u.LinkedIn,
		Role:           string(u.Role),
		Provider:       string(u.Provider),
		ArticlesCount:  u.ArticlesCount,
		FollowersCount: u.FollowersCount,
		TotalViews:     u.TotalViews,
		TotalLikes:     u.TotalLikes,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
	if includeEmail {
		resp.Email = u.Email
	}
	return resp
}

// blogResponse はブログのAPIレスポンス。
type blogResponse struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Excerpt       string          `json:"excerpt"`
	Content       string          `json:"content,omitempty"`
	Slug          string          `json:"slug"`
	Category      string          `json:"category"`
	Tags          []string        `json:"tags"`
	CoverImage    string          `json:"coverImage"`
	Status        string          `json:"status"`
	Featured      bool            `json:"featured"`
	ReadTime      string          `json:"readTime"`
	PublishedAt   *time.Time      `json:"publishedAt"`
	ScheduledAt   *time.Time      `json:"scheduledAt"`
	Views         int64           `json:"views"`
	LikesCount    int             `json:"likesCount"`
	CommentsCount int             `json:"commentsCount"`
	AuthorID      string          `json:"authorId"`
	Author        *authorResponse `json:"author,omitempty"`
	IsLiked       bool            `json:"isLiked"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// toBlogResponse は本文を含むレスポンスに変換する。一覧ではwithContent=falseで本文を省く。
func toBlogResponse(b *model.Blog, withContent bool) blogResponse {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	resp := blogResponse{
		ID:            b.ID,
		Title:         b.Title,
		Excerpt:       b.Excerpt,
		Slug:          b.Slug,
		Category:      b.Category,
		Tags:          tags,
		CoverImage:    b.CoverImage,
		Status:        string(b.Status),
		Featured:      b.Featured,
		ReadTime:      b.ReadTime,
		PublishedAt:   b.PublishedAt,
		ScheduledAt:   b.ScheduledAt,
		Views:         b.Views,
		LikesCount:    b.LikesCount,
		CommentsCount: b.CommentsCount,
		AuthorID:      b.AuthorID,
		Author:        toAuthorResponse(b.Author),
		IsLiked:       b.IsLiked,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if withContent {
		resp.Content = b.Content
	}
	return resp
}

func toBlogResponses(blogs []*model.Blog) []blogResponse {
	out := make([]blogResponse, len(blogs))
	for i, b := range blogs {
		out[i] = toBlogResponse(b, false)
	}
	return out
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	BlogID    string            `json:"blogId"`
	UserID    string            `json:"userId"`
	ParentID  *string           `json:"parentId"`
	Author    *authorResponse   `json:"author,omitempty"`
	Replies   []commentResponse `json:"replies"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func toCommentResponse(c *model.Comment) commentResponse {
	replies := make([]commentResponse, len(c.Replies))
	for i, r := range c.Replies {
		replies[i] = toCommentResponse(r)
	}
	return commentResponse{
		ID:        c.ID,
		Content:   c.Content,
		BlogID:    c.BlogID,
		UserID:    c.UserID,
		ParentID:  c.ParentID,
		Author:    toAuthorResponse(c.Author),
		Replies:   replies,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// notificationResponse は通知のAPIレスポンス。
type notificationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	BlogID    *string   `json:"blogId"`
	CommentID *string   `json:"commentId"`
	CreatedAt time.Time `json:"createdAt"`
}

func toNotificationResponse(n *model.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		BlogID:    n.BlogID,
		CommentID: n.CommentID,
		CreatedAt: n.CreatedAt,
	}
}
