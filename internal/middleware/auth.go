// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/blogflow/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// authContextKey はリクエストコンテキストに認証コンテキストを格納するためのキー。
var authContextKey = contextKey("auth")

// TokenAuthenticator はベアラートークンから認証コンテキストを作る。
// auth.Authenticatorが実装する。
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.AuthContext, error)
}

// Auth はベアラートークン認証のミドルウェア群。
type Auth struct {
	authenticator TokenAuthenticator
	logger        *slog.Logger
}

// NewAuth はAuthを生成する。
func NewAuth(authenticator TokenAuthenticator, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auth{authenticator: authenticator, logger: logger}
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate はベアラートークンを必須とするミドルウェアを返す。
// 検証に失敗した場合は401、メールアドレスのない身元は400を返す。
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			WriteAPIError(w, model.NewAuthenticationRequiredError())
			return
		}

		authCtx, err := a.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			var apiErr *model.APIError
			if errors.As(err, &apiErr) {
				WriteAPIError(w, apiErr)
				return
			}
			a.logger.Error("failed to authenticate request",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			WriteInternalServerError(w, "")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), authCtx)))
	})
}

// OptionalAuth はトークンがあれば認証コンテキストを付与し、失敗してもリクエストを通すミドルウェアを返す。
func (a *Auth) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		authCtx, err := a.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			a.logger.Debug("optional authentication failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithAuth(r.Context(), authCtx)))
	})
}

// RequireRole は認証済みかつ指定ロールのいずれかを持つ呼び出し元のみ通すミドルウェアを返す。
// Authenticateの後に配置する。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := AuthFromContext(r.Context())
			if authCtx == nil {
				WriteAPIError(w, model.NewAuthenticationRequiredError())
				return
			}
			for _, role := range roles {
				if authCtx.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteAPIError(w, model.NewInsufficientPermissionsError())
		})
	}
}

// RequireUser は一般ユーザーと管理者を通す。
func RequireUser() func(next http.Handler) http.Handler {
	return RequireRole(model.RoleUser, model.RoleAdmin)
}

// RequireAdmin は管理者のみ通す。
func RequireAdmin() func(next http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin)
}

// AuthFromContext はリクエストコンテキストから認証コンテキストを取得する。未認証の場合はnil。
func AuthFromContext(ctx context.Context) *model.AuthContext {
	authCtx, _ := ctx.Value(authContextKey).(*model.AuthContext)
	return authCtx
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	authCtx := AuthFromContext(ctx)
	if authCtx == nil || authCtx.UserID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return authCtx.UserID, nil
}

// ContextWithAuth はコンテキストに認証コンテキストを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAuth(ctx context.Context, authCtx *model.AuthContext) context.Context {
	if authCtx != nil {
		noteUserID(ctx, authCtx.UserID)
	}
	return context.WithValue(ctx, authContextKey, authCtx)
}
