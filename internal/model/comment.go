package model

import "time"

// Comment はブログへのコメントを表す。
// 返信は1階層のみ: ParentIDが指すコメントは同じブログのトップレベルコメント。
type Comment struct {
	ID        string
	Content   string
	BlogID    string
	UserID    string
	ParentID  *string
	CreatedAt time.Time
	UpdatedAt time.Time

	Author  *UserSummary
	Replies []*Comment
}

// IsReply は返信コメントかを返す。
func (c *Comment) IsReply() bool {
	return c.ParentID != nil && *c.ParentID != ""
}
