package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/blogflow/internal/model"
	"github.com/hitoshi/blogflow/internal/repository"
)

const (
	maxUsernameLength = 30
	// maxUsernameAttempts を超えたらID由来のサフィックスで打ち切る。
	maxUsernameAttempts = 1000
)

// AdminSet はブートストラップ管理者のメールアドレス集合。大文字小文字を区別しない。
type AdminSet map[string]struct{}

// NewAdminSet はメールアドレス一覧からAdminSetを生成する。
func NewAdminSet(emails []string) AdminSet {
	set := make(AdminSet, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return set
}

// Contains はメールアドレスが集合に含まれるかを返す。
func (s AdminSet) Contains(email string) bool {
	_, ok := s[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Notifier は通知を作成する。notification.Serviceが実装する。
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}

// DirectorySync は外部IdPで検証された身元をローカルユーザーと突き合わせる。
type DirectorySync struct {
	users    repository.UserRepository
	notifier Notifier
	admins   AdminSet
	logger   *slog.Logger
}

// NewDirectorySync はDirectorySyncを生成する。
func NewDirectorySync(users repository.UserRepository, notifier Notifier, admins AdminSet, logger *slog.Logger) *DirectorySync {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectorySync{
		users:    users,
		notifier: notifier,
		admins:   admins,
		logger:   logger,
	}
}

// Reconcile はメールアドレスでローカルユーザーを検索し、なければ作成する。
// 既存ユーザーのロールは1リクエストにつき高々1回だけ補正する。
func (s *DirectorySync) Reconcile(ctx context.Context, identity *model.VerifiedIdentity) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, model.NewEmailRequiredError()
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return s.provision(ctx, identity, email)
	}

	return s.reconcileRole(ctx, user, identity.RoleClaim)
}

// ShouldBeAdmin はロール判定規則を適用する。
func (s *DirectorySync) ShouldBeAdmin(email, roleClaim string) bool {
	return strings.EqualFold(roleClaim, string(model.RoleAdmin)) || s.admins.Contains(email)
}

func (s *DirectorySync) reconcileRole(ctx context.Context, user *model.User, roleClaim string) (*model.User, error) {
	shouldBeAdmin := s.ShouldBeAdmin(user.Email, roleClaim)

	var next model.Role
	switch {
	case shouldBeAdmin && user.Role != model.RoleAdmin:
		next = model.RoleAdmin
	case !shouldBeAdmin && user.Role == model.RoleAdmin && !s.admins.Contains(user.Email):
		next = model.RoleUser
	default:
		return user, nil
	}

	if err := s.users.UpdateRole(ctx, user.ID, next); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	previous := user.Role
	user.Role = next

	s.logger.Info("user role reconciled",
		slog.String("user_id", user.ID),
		slog.String("from", string(previous)),
		slog.String("to", string(next)),
	)
	notifyRoleChanged(ctx, s.notifier, s.logger, user.ID, next)
	return user, nil
}

func (s *DirectorySync) provision(ctx context.Context, identity *model.VerifiedIdentity, email string) (*model.User, error) {
	username, err := uniqueUsername(ctx, s.users, usernameBase(identity.Username, email, identity.ID), identity.ID)
	if err != nil {
		return nil, err
	}

	role := model.RoleUser
	if s.ShouldBeAdmin(email, identity.RoleClaim) {
		role = model.RoleAdmin
	}

	now := time.Now()
	name := identity.Name
	if name == "" {
		name = username
	}
	user := &model.User{
		ID:        identity.ID,
		Email:     email,
		Username:  username,
		Name:      name,
		Avatar:    identity.Avatar,
		Role:      role,
		Provider:  identity.Provider,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if user.Provider == "" {
		user.Provider = model.ProviderEmail
	}

	if err := s.users.Create(ctx, user); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) && dup.Field() == "email" {
			// 同一ユーザーの初回リクエストが並行した場合は先行した作成結果を使う
			existing, findErr := s.users.FindByEmail(ctx, email)
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user provisioned from identity provider",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// usernameBase はユーザー名の候補を決める。
// メタデータのusername、メールのローカル部、IDの先頭8文字の順に使う。
func usernameBase(preferred, email, id string) string {
	if base := NormalizeUsername(preferred); base != "" {
		return base
	}
	if at := strings.Index(email, "@"); at > 0 {
		if base := NormalizeUsername(email[:at]); base != "" {
			return base
		}
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	if base := NormalizeUsername("user_" + short); base != "" {
		return base
	}
	return "user"
}

// NormalizeUsername は小文字化し[a-z0-9_-]以外を除去して30文字に切り詰める。
func NormalizeUsername(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > maxUsernameLength {
		out = out[:maxUsernameLength]
	}
	return out
}

// usernameExister はユーザー名の使用状況を返す。
type usernameExister interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// uniqueUsername はbase, base1, base2, ... の順に未使用のユーザー名を探す。
func uniqueUsername(ctx context.Context, users usernameExister, base, id string) (string, error) {
	candidate := base
	for n := 1; n <= maxUsernameAttempts; n++ {
		exists, err := users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = withSuffix(base, strconv.Itoa(n))
	}
	return withSuffix(base, "_"+NormalizeUsername(strings.ReplaceAll(id, "-", ""))), nil
}

func withSuffix(base, suffix string) string {
	if len(suffix) >= maxUsernameLength {
		return suffix[:maxUsernameLength]
	}
	if len(base)+len(suffix) > maxUsernameLength {
		base = base[:maxUsernameLength-len(suffix)]
	}
	return base + suffix
}

// notifyRoleChanged はROLE_CHANGED通知を作成する。失敗はログのみ。
func notifyRoleChanged(ctx context.Context, notifier Notifier, logger *slog.Logger, userID string, role model.Role) {
	if notifier == nil {
		return
	}
	n := &model.Notification{
		Type:    model.NotificationRoleChanged,
		Title:   "Role updated",
		Message: fmt.Sprintf("Your role has been changed to %s.", role),
		UserID:  userID,
	}
	if err := notifier.Notify(ctx, n); err != nil {
		logger.Warn("failed to create role change notification",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
