package auth

import (
	"context"

	"github.com/hitoshi/blogflow/internal/model"
)

// IdentityVerifier はベアラートークンを検証する。
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*model.VerifiedIdentity, error)
}

// Reconciler は外部IdPの身元をローカルユーザーと突き合わせる。
type Reconciler interface {
	Reconcile(ctx context.Context, identity *model.VerifiedIdentity) (*model.User, error)
}

// Authenticator はトークン検証とユーザー突き合わせをまとめ、リクエストの認証コンテキストを作る。
type Authenticator struct {
	verifier   IdentityVerifier
	reconciler Reconciler
}

// NewAuthenticator はAuthenticatorを生成する。
func NewAuthenticator(verifier IdentityVerifier, reconciler Reconciler) *Authenticator {
	return &Authenticator{verifier: verifier, reconciler: reconciler}
}

// Authenticate はトークンから認証コンテキストを返す。
// ローカルトークン経路は突き合わせを行わず、埋め込まれたクレームをそのまま使う。
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*model.AuthContext, error) {
	identity, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if !identity.Source.FromProvider() {
		role := model.Role(identity.RoleClaim)
		if !role.Valid() {
			role = model.RoleUser
		}
		return &model.AuthContext{
			UserID: identity.ID,
			Email:  identity.Email,
			Role:   role,
			Source: identity.Source,
		}, nil
	}

	user, err := a.reconciler.Reconcile(ctx, identity)
	if err != nil {
		return nil, err
	}
	return &model.AuthContext{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Source: identity.Source,
	}, nil
}
