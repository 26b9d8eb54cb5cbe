package model

// IdentitySource はベアラートークンを検証できた経路を表す。
type IdentitySource string

const (
	SourceProviderJWT IdentitySource = "provider_jwt"
	SourceProviderAPI IdentitySource = "provider_api"
	SourceLocal       IdentitySource = "local"
)

// FromProvider は外部IdP経由で検証された経路かを返す。
// この場合のみユーザーディレクトリとの突き合わせを行う。
func (s IdentitySource) FromProvider() bool {
	return s == SourceProviderJWT || s == SourceProviderAPI
}

// VerifiedIdentity は検証済みトークンから取り出した突き合わせ前の身元情報。
type VerifiedIdentity struct {
	ID        string
	Email     string
	RoleClaim string // 外部IdPのuser_metadata.role、ローカルトークンではrole
	Username  string
	Name      string
	Avatar    string
	Provider  AuthProvider
	Source    IdentitySource
}

// AuthContext はリクエストコンテキストに格納される認証済み呼び出し元。
type AuthContext struct {
	UserID string
	Email  string
	Role   Role
	Source IdentitySource
}

// IsAdmin は管理者ロールかを返す。
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}
