package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogflow/internal/model"
)

// --- モック ---

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, token string) (*model.AuthContext, error)
	calls          int
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*model.AuthContext, error) {
	m.calls++
	return m.authenticateFn(ctx, token)
}

func tokenAuthenticator() *mockAuthenticator {
	return &mockAuthenticator{
		authenticateFn: func(ctx context.Context, token string) (*model.AuthContext, error) {
			switch token {
			case "user-token":
				return &model.AuthContext{UserID: "user-1", Email: "u@example.com", Role: model.RoleUser, Source: model.SourceLocal}, nil
			case "admin-token":
				return &model.AuthContext{UserID: "admin-1", Email: "a@example.com", Role: model.RoleAdmin, Source: model.SourceProviderJWT}, nil
			case "no-email":
				return nil, model.NewEmailRequiredError()
			case "db-down":
				return nil, errors.New("failed to find user by email: connection refused")
			default:
				return nil, model.NewAuthenticationRequiredError()
			}
		},
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	return body
}

// --- Authenticate ---

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
		wantUserID string
	}{
		{"valid bearer token", "Bearer user-token", http.StatusOK, "", "user-1"},
		{"case-insensitive scheme", "bearer admin-token", http.StatusOK, "", "admin-1"},
		{"missing header", "", http.StatusUnauthorized, model.ErrCodeAuthenticationRequired, ""},
		{"non-bearer scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, model.ErrCodeAuthenticationRequired, ""},
		{"invalid token", "Bearer garbage", http.StatusUnauthorized, model.ErrCodeAuthenticationRequired, ""},
		{"identity without email", "Bearer no-email", http.StatusBadRequest, model.ErrCodeEmailRequired, ""},
		{"directory failure", "Bearer db-down", http.StatusInternalServerError, model.ErrCodeInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuth(tokenAuthenticator(), nil)

			var gotUserID string
			handler := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID, _ = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if body := decodeError(t, w); body.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
				}
			}
			if gotUserID != tt.wantUserID {
				t.Errorf("userID = %q, want %q", gotUserID, tt.wantUserID)
			}
		})
	}
}

// --- OptionalAuth ---

func TestOptionalAuth_NeverBlocks(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantUserID string
	}{
		{"anonymous", "", ""},
		{"valid token", "Bearer user-token", "user-1"},
		{"invalid token", "Bearer garbage", ""},
		{"directory failure", "Bearer db-down", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuth(tokenAuthenticator(), nil)

			called := false
			var authCtx *model.AuthContext
			handler := a.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				authCtx = AuthFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/blogs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if !called {
				t.Fatal("handler should always be called")
			}
			gotUserID := ""
			if authCtx != nil {
				gotUserID = authCtx.UserID
			}
			if gotUserID != tt.wantUserID {
				t.Errorf("userID = %q, want %q", gotUserID, tt.wantUserID)
			}
		})
	}
}

func TestOptionalAuth_SkipsVerificationWithoutHeader(t *testing.T) {
	authenticator := tokenAuthenticator()
	a := NewAuth(authenticator, nil)

	a.OptionalAuth(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if authenticator.calls != 0 {
		t.Errorf("Authenticate called %d times, want 0", authenticator.calls)
	}
}

// --- RequireRole ---

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		authCtx    *model.AuthContext
		mw         func(http.Handler) http.Handler
		wantStatus int
	}{
		{"no identity", nil, RequireUser(), http.StatusUnauthorized},
		{"user passes user policy", &model.AuthContext{UserID: "u", Role: model.RoleUser}, RequireUser(), http.StatusOK},
		{"admin passes user policy", &model.AuthContext{UserID: "a", Role: model.RoleAdmin}, RequireUser(), http.StatusOK},
		{"user fails admin policy", &model.AuthContext{UserID: "u", Role: model.RoleUser}, RequireAdmin(), http.StatusForbidden},
		{"admin passes admin policy", &model.AuthContext{UserID: "a", Role: model.RoleAdmin}, RequireAdmin(), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authCtx != nil {
				req = req.WithContext(ContextWithAuth(req.Context(), tt.authCtx))
			}
			w := httptest.NewRecorder()
			tt.mw(okHandler()).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if w.Code == http.StatusForbidden {
				if body := decodeError(t, w); body.Code != model.ErrCodeInsufficientPermissions {
					t.Errorf("code = %q", body.Code)
				}
			}
		})
	}
}

// TestAuthChain_WithChiRouter はAuthenticate → RequireAdmin のチェーンがchi.Routerで動作することを検証する。
func TestAuthChain_WithChiRouter(t *testing.T) {
	a := NewAuth(tokenAuthenticator(), nil)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(a.Authenticate)
		r.With(RequireAdmin()).Put("/api/blogs/{id}/status", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(chi.URLParam(r, "id")))
		})
	})

	tests := []struct {
		token      string
		wantStatus int
	}{
		{"", http.StatusUnauthorized},
		{"user-token", http.StatusForbidden},
		{"admin-token", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPut, "/api/blogs/b1/status", nil)
		if tt.token != "" {
			req.Header.Set("Authorization", "Bearer "+tt.token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tt.wantStatus {
			t.Errorf("token %q: status = %d, want %d", tt.token, w.Code, tt.wantStatus)
		}
		if w.Code == http.StatusOK && w.Body.String() != "b1" {
			t.Errorf("body = %q", w.Body.String())
		}
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for context without auth")
	}
	if AuthFromContext(context.Background()) != nil {
		t.Error("expected nil auth context")
	}
}
