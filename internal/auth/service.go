// Package auth はベアラートークンの検証、外部IdPとのユーザー突き合わせ、
// ローカルアカウントのトークン発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/blogflow/internal/model"
	"github.com/hitoshi/blogflow/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int // 0の場合はbcrypt.DefaultCost
}

// RegisterInput はローカルアカウント登録の入力。
type RegisterInput struct {
	Email    string
	Password string
	Username string
	Name     string
}

// AuthResult は登録・ログイン・リフレッシュの結果。
type AuthResult struct {
	User   *model.User
	Tokens *TokenPair
}

// Service はローカルアカウントの登録・ログイン・トークン管理を提供する。
type Service struct {
	users    repository.UserRepository
	sessions repository.RefreshSessionRepository
	tokens   *TokenIssuer
	admins   AdminSet
	notifier Notifier
	config   ServiceConfig
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	sessions repository.RefreshSessionRepository,
	tokens *TokenIssuer,
	admins AdminSet,
	notifier Notifier,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		admins:   admins,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
}

// Register はローカルアカウントを作成し、トークンを発行する。
// ブートストラップ管理者のメールアドレスはADMINとして作成する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, model.NewEmailRequiredError()
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("Email already registered")
	}

	id := uuid.NewString()
	var username string
	if in.Username != "" {
		username = NormalizeUsername(in.Username)
		if username == "" {
			return nil, model.NewValidationError("Invalid username",
				model.FieldError{Field: "username", Message: "must contain letters, digits, '_' or '-'"})
		}
		taken, err := s.users.UsernameExists(ctx, username)
		if err != nil {
			return nil, fmt.Errorf("failed to check username: %w", err)
		}
		if taken {
			return nil, model.NewConflictError("Username already taken")
		}
	} else {
		username, err = uniqueUsername(ctx, s.users, usernameBase("", email, id), id)
		if err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := model.RoleUser
	if s.admins.Contains(email) {
		role = model.RoleAdmin
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = username
	}

	now := time.Now()
	user := &model.User{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		Provider:     model.ProviderEmail,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, model.NewConflictError(fmt.Sprintf("%s already in use", dup.Field()))
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("local account registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	tokens, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Login はメールアドレスとパスワードを検証し、トークンを発行する。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	tokens, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Refresh はリフレッシュトークンをローテーションし、新しいトークンを発行する。
// 使用済みのリフレッシュトークンは無効になる。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, model.NewInvalidTokenError()
	}

	sessionID := refreshSessionID(claims.ID)
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh session: %w", err)
	}
	if session == nil || session.UserID != claims.UserID {
		return nil, model.NewInvalidTokenError()
	}
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh session: %w", err)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidTokenError()
	}

	tokens, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Tokens: tokens}, nil
}

// Logout はリフレッシュトークンを失効させる。既に失効済みでもエラーにしない。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return model.NewInvalidTokenError()
	}
	if err := s.sessions.DeleteByID(ctx, refreshSessionID(claims.ID)); err != nil {
		return fmt.Errorf("failed to delete refresh session: %w", err)
	}
	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	return nil
}

// Me は認証済みユーザーのプロフィールを返す。
// ブートストラップ管理者がADMINでない場合はここで昇格させる。
func (s *Service) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if s.admins.Contains(user.Email) && user.Role != model.RoleAdmin {
		if err := s.users.UpdateRole(ctx, user.ID, model.RoleAdmin); err != nil {
			return nil, fmt.Errorf("failed to promote bootstrap admin: %w", err)
		}
		user.Role = model.RoleAdmin
		s.logger.Info("bootstrap admin promoted", slog.String("user_id", user.ID))
		notifyRoleChanged(ctx, s.notifier, s.logger, user.ID, model.RoleAdmin)
	}
	return user, nil
}

// issuePair はアクセストークンとリフレッシュトークンを発行し、リフレッシュセッションを保存する。
func (s *Service) issuePair(ctx context.Context, user *model.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, err
	}
	refresh, jti, expiresAt, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}

	session := &model.RefreshSession{
		ID:        refreshSessionID(jti),
		UserID:    user.ID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save refresh session: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}
