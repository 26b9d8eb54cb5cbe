package auth

import (
	"context"
	"testing"

	"github.com/hitoshi/blogflow/internal/model"
)

type stubVerifier struct {
	identity *model.VerifiedIdentity
	err      error
}

func (s *stubVerifier) Verify(context.Context, string) (*model.VerifiedIdentity, error) {
	return s.identity, s.err
}

type stubReconciler struct {
	called bool
	user   *model.User
	err    error
}

func (s *stubReconciler) Reconcile(context.Context, *model.VerifiedIdentity) (*model.User, error) {
	s.called = true
	return s.user, s.err
}

func TestAuthenticator_ProviderIdentityIsReconciled(t *testing.T) {
	rec := &stubReconciler{user: &model.User{ID: "local-id", Email: "a@example.com", Role: model.RoleAdmin}}
	a := NewAuthenticator(&stubVerifier{identity: &model.VerifiedIdentity{
		ID: "prov-id", Email: "a@example.com", Source: model.SourceProviderJWT,
	}}, rec)

	ac, err := a.Authenticate(context.Background(), "token")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !rec.called {
		t.Error("provider identity must be reconciled")
	}
	if ac.UserID != "local-id" || ac.Role != model.RoleAdmin || ac.Source != model.SourceProviderJWT {
		t.Errorf("ctx = %+v", ac)
	}
}

func TestAuthenticator_LocalIdentityTrustsClaims(t *testing.T) {
	rec := &stubReconciler{}
	a := NewAuthenticator(&stubVerifier{identity: &model.VerifiedIdentity{
		ID: "u1", Email: "l@example.com", RoleClaim: "ADMIN", Source: model.SourceLocal,
	}}, rec)

	ac, err := a.Authenticate(context.Background(), "token")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if rec.called {
		t.Error("local identity must bypass reconciliation")
	}
	if ac.UserID != "u1" || ac.Role != model.RoleAdmin {
		t.Errorf("ctx = %+v", ac)
	}
}

func TestAuthenticator_LocalUnknownRoleFallsBackToUser(t *testing.T) {
	a := NewAuthenticator(&stubVerifier{identity: &model.VerifiedIdentity{
		ID: "u1", RoleClaim: "superuser", Source: model.SourceLocal,
	}}, &stubReconciler{})

	ac, err := a.Authenticate(context.Background(), "token")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if ac.Role != model.RoleUser {
		t.Errorf("Role = %q, want USER", ac.Role)
	}
}

func TestAuthenticator_PropagatesErrors(t *testing.T) {
	a := NewAuthenticator(&stubVerifier{err: model.NewAuthenticationRequiredError()}, &stubReconciler{})
	_, err := a.Authenticate(context.Background(), "token")
	assertAPIErrorCode(t, err, model.ErrCodeAuthenticationRequired)

	b := NewAuthenticator(&stubVerifier{identity: &model.VerifiedIdentity{Source: model.SourceProviderAPI}},
		&stubReconciler{err: model.NewEmailRequiredError()})
	_, err = b.Authenticate(context.Background(), "token")
	assertAPIErrorCode(t, err, model.ErrCodeEmailRequired)
}
