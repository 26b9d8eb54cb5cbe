// Package user はプロフィール編集、退会、管理者によるユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/blogflow/internal/auth"
	"github.com/hitoshi/blogflow/internal/model"
	"github.com/hitoshi/blogflow/internal/repository"
	"github.com/hitoshi/blogflow/internal/security"
)

const (
	minUsernameLength = 3
	maxNameLength     = 100
	maxBioLength      = 500
)

// SessionDeleter はユーザーのリフレッシュセッションを一括削除する。
type SessionDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Notifier は通知を作成する。
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}

// ProfileInput はプロフィール更新の入力。nilの項目は変更しない。
type ProfileInput struct {
	Username *string
	Name     *string
	Avatar   *string
	Bio      *string
	Website  *string
	Twitter  *string
	GitHub   *string
	LinkedIn *string
}

// ListResult はユーザー一覧の結果。
type ListResult struct {
	Users      []*model.User
	Pagination model.Pagination
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo SessionDeleter
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo SessionDeleter,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// GetByUsername は公開プロフィールを取得する。
func (s *Service) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := s.userRepo.FindByUsername(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

// UpdateProfile は本人のプロフィールを更新する。
// URL項目は公開http(s)のみ受け付け、空文字列は削除として扱う。
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.User, error) {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}

	var details []model.FieldError

	if in.Username != nil {
		raw := strings.ToLower(strings.TrimSpace(*in.Username))
		normalized := auth.NormalizeUsername(raw)
		if normalized != raw || len(normalized) < minUsernameLength {
			details = append(details, model.FieldError{
				Field:   "username",
				Message: "username must be 3-30 characters of a-z, 0-9, _ or -",
			})
		} else {
			u.Username = normalized
		}
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len([]rune(name)) > maxNameLength {
			details = append(details, model.FieldError{Field: "name", Message: fmt.Sprintf("name must be at most %d characters", maxNameLength)})
		} else {
			u.Name = name
		}
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if len([]rune(bio)) > maxBioLength {
			details = append(details, model.FieldError{Field: "bio", Message: fmt.Sprintf("bio must be at most %d characters", maxBioLength)})
		} else {
			u.Bio = bio
		}
	}

	urlFields := []struct {
		name  string
		value *string
		dest  *string
	}{
		{"avatar", in.Avatar, &u.Avatar},
		{"website", in.Website, &u.Website},
		{"twitter", in.Twitter, &u.Twitter},
		{"github", in.GitHub, &u.GitHub},
		{"linkedin", in.LinkedIn, &u.LinkedIn},
	}
	for _, f := range urlFields {
		if f.value == nil {
			continue
		}
		v := strings.TrimSpace(*f.value)
		if v != "" {
			if err := security.ValidatePublicURL(v); err != nil {
				details = append(details, model.FieldError{Field: f.name, Message: err.Error()})
				continue
			}
		}
		*f.dest = v
	}

	if len(details) > 0 {
		return nil, model.NewValidationError("", details...)
	}

	u.UpdatedAt = s.now().UTC()
	if err := s.userRepo.UpdateProfile(ctx, u); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return nil, model.NewConflictError(fmt.Sprintf("%s already in use", dup.Field()))
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return u, nil
}

// DeleteAccount はユーザーの退会処理を実行する。
// 削除順序: refresh_sessions → user（+ CASCADE: blogs, comments, likes, notifications）
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("account deletion started", slog.String("user_id", userID))

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info("account deletion completed", slog.String("user_id", userID))
	return nil
}

// ListUsers は管理者向けにユーザー一覧を返す。
func (s *Service) ListUsers(ctx context.Context, page model.Page) (*ListResult, error) {
	users, total, err := s.userRepo.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return &ListResult{Users: users, Pagination: page.Paginate(total)}, nil
}

// SetRole は管理者がユーザーのロールを変更する。
// 変更があった場合のみ対象ユーザーにROLE_CHANGEDを通知する。
func (s *Service) SetRole(ctx context.Context, actor *model.AuthContext, userID string, role model.Role) (*model.User, error) {
	if !actor.IsAdmin() {
		return nil, model.NewInsufficientPermissionsError()
	}
	if !role.Valid() {
		return nil, model.NewValidationError("", model.FieldError{Field: "role", Message: "role must be USER or ADMIN"})
	}

	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	if u.Role == role {
		return u, nil
	}

	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	u.Role = role

	s.logger.Info("user role changed",
		slog.String("user_id", userID),
		slog.String("role", string(role)),
		slog.String("actor_id", actor.UserID),
	)

	if s.notifier != nil {
		n := &model.Notification{
			Type:    model.NotificationRoleChanged,
			Title:   "Role updated",
			Message: fmt.Sprintf("Your role has been changed to %s.", role),
			UserID:  userID,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Warn("failed to create role change notification",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return u, nil
}
