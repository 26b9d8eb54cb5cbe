package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid はロールが定義済みの値かを返す。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// AuthProvider はアカウントの登録経路を表す。
type AuthProvider string

const (
	ProviderEmail  AuthProvider = "EMAIL"
	ProviderGoogle AuthProvider = "GOOGLE"
	ProviderGitHub AuthProvider = "GITHUB"
)

// ParseAuthProvider は外部IdPのprovider文字列をAuthProviderに変換する。
// 未知の値はEMAILとして扱う。
func ParseAuthProvider(s string) AuthProvider {
	switch s {
	case "google", "GOOGLE":
		return ProviderGoogle
	case "github", "GITHUB":
		return ProviderGitHub
	default:
		return ProviderEmail
	}
}

// User はサービス利用ユーザーを表す。
// email と username はそれぞれ一意。
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string // ローカルアカウントのみ
	Name         string
	Avatar       string
	Bio          string
	Website      string
	Twitter      string
	GitHub       string
	LinkedIn     string
	Role         Role
	Provider     AuthProvider

	ArticlesCount  int
	FollowersCount int
	TotalViews     int64
	TotalLikes     int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAdmin はユーザーが管理者かを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserSummary はブログやコメントに埋め込む著者情報。
type UserSummary struct {
	ID       string
	Username string
	Name     string
	Avatar   string
}

// RefreshSession は発行済みリフレッシュトークンの失効管理レコード。
// IDにはトークンjtiのハッシュを格納し、平文は保存しない。
type RefreshSession struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
