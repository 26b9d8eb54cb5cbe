// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/blogflow/internal/middleware"
	"github.com/hitoshi/blogflow/internal/model"
)

// successResponse は成功レスポンスの統一フォーマット。
type successResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// listPayload は一覧レスポンスのdata部分。
type listPayload struct {
	Data       any              `json:"data"`
	Pagination model.Pagination `json:"pagination"`
}

// writeJSON は任意の値をJSONで書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeSuccess は成功レスポンスを書き込む。
func writeSuccess(w http.ResponseWriter, statusCode int, data any, message string) {
	writeJSON(w, statusCode, successResponse{Success: true, Data: data, Message: message})
}

// writeList は一覧レスポンスを書き込む。
func writeList(w http.ResponseWriter, data any, pagination model.Pagination) {
	writeSuccess(w, http.StatusOK, listPayload{Data: data, Pagination: pagination}, "")
}

// ErrorConfig はエラーレスポンスの出力方針。
type ErrorConfig struct {
	// Development が真の場合、内部エラーの詳細をレスポンスに含める
	Development bool
	Logger      *slog.Logger
}

// errorResponder はサービス層のエラーをHTTPレスポンスに変換する。
type errorResponder struct {
	dev    bool
	logger *slog.Logger
}

func newErrorResponder(cfg ErrorConfig) errorResponder {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return errorResponder{dev: cfg.Development, logger: logger}
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// APIError以外は内部エラーとしてログに残す。
func (e errorResponder) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	e.logger.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	detail := ""
	if e.dev {
		detail = err.Error()
	}
	middleware.WriteInternalServerError(w, detail)
}

// writeBadRequest は入力エラーを書き込む。
func writeBadRequest(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteAPIError(w, apiErr)
}

// requireAuth は認証コンテキストを取り出す。未認証の場合は401を書き込みnilを返す。
func requireAuth(w http.ResponseWriter, r *http.Request) *model.AuthContext {
	authCtx := middleware.AuthFromContext(r.Context())
	if authCtx == nil {
		middleware.WriteAPIError(w, model.NewAuthenticationRequiredError())
		return nil
	}
	return authCtx
}

// pageFromQuery はpage, limitクエリからページ指定を作る。不正な値は既定値になる。
func pageFromQuery(r *http.Request) model.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return model.NewPage(page, limit)
}
