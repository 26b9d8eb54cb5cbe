package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogflow/internal/middleware"
	"github.com/hitoshi/blogflow/internal/model"
)

// envelope はレスポンスの共通フォーマットをテスト用にデコードする。
type envelope struct {
	Success bool               `json:"success"`
	Data    json.RawMessage    `json:"data"`
	Message string             `json:"message"`
	Error   string             `json:"error"`
	Code    string             `json:"code"`
	Details []model.FieldError `json:"details"`
}

type listEnvelope struct {
	Data       json.RawMessage  `json:"data"`
	Pagination model.Pagination `json:"pagination"`
}

var (
	testUser  = &model.AuthContext{UserID: "user-1", Email: "user@example.com", Role: model.RoleUser, Source: model.SourceLocal}
	testAdmin = &model.AuthContext{UserID: "admin-1", Email: "admin@example.com", Role: model.RoleAdmin, Source: model.SourceLocal}
)

// newRequest はJSONボディ付きのリクエストを作る。bodyが空文字ならボディなし。
func newRequest(method, target, body string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// withAuth はリクエストに認証コンテキストを設定する。
func withAuth(req *http.Request, authCtx *model.AuthContext) *http.Request {
	return req.WithContext(middleware.ContextWithAuth(req.Context(), authCtx))
}

// withURLParams はchiのURLパラメータを設定する。
func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("failed to decode data %q: %v", string(env.Data), err)
	}
}

// assertError はエラーレスポンスのステータスとコードを検証する。
func assertError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) envelope {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d (body=%s)", w.Code, wantStatus, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if env.Success {
		t.Error("success should be false")
	}
	if env.Code != wantCode {
		t.Errorf("code = %q, want %q", env.Code, wantCode)
	}
	return env
}

func hasFieldError(details []model.FieldError, field string) bool {
	for _, d := range details {
		if d.Field == field {
			return true
		}
	}
	return false
}
