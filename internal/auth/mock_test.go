package auth

import (
	"context"
	"time"

	"github.com/hitoshi/blogflow/internal/model"
	"github.com/hitoshi/blogflow/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	usernameExistsFn func(ctx context.Context, username string) (bool, error)
	createFn         func(ctx context.Context, user *model.User) error
	updateRoleFn     func(ctx context.Context, id string, role model.Role) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	if m.usernameExistsFn != nil {
		return m.usernameExistsFn(ctx, username)
	}
	return false, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, id, role)
	}
	return nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, _ *model.User) error {
	return nil
}

func (m *mockUserRepo) List(_ context.Context, _ model.Page) ([]*model.User, int, error) {
	return nil, 0, nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

// memSessionRepo はリフレッシュセッションをメモリに保持する。
type memSessionRepo struct {
	sessions map[string]*model.RefreshSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.RefreshSession)}
}

func (m *memSessionRepo) Create(_ context.Context, session *model.RefreshSession) error {
	m.sessions[session.ID] = session
	return nil
}

func (m *memSessionRepo) FindByID(_ context.Context, id string) (*model.RefreshSession, error) {
	s, ok := m.sessions[id]
	if !ok || s.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return s, nil
}

func (m *memSessionRepo) DeleteByID(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

type mockNotifier struct {
	notified []*model.Notification
}

func (m *mockNotifier) Notify(_ context.Context, n *model.Notification) error {
	m.notified = append(m.notified, n)
	return nil
}

type mockRecorder struct {
	calls []string
}

func (m *mockRecorder) RecordAuthVerification(source, result string) {
	m.calls = append(m.calls, source+":"+result)
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.RefreshSessionRepository = (*memSessionRepo)(nil)
var _ Notifier = (*mockNotifier)(nil)
var _ VerificationRecorder = (*mockRecorder)(nil)
