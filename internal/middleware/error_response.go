package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hitoshi/blogflow/internal/model"
)

// ErrorCodeRateLimited はレート制限超過時のエラーコード。
const ErrorCodeRateLimited = "RATE_LIMITED"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Success bool               `json:"success"`
	Error   string             `json:"error"`
	Code    string             `json:"code"`
	Details []model.FieldError `json:"details,omitempty"`
}

// StatusForCode はエラーコードをHTTPステータスに変換する。
func StatusForCode(code string) int {
	switch code {
	case model.ErrCodeAuthenticationRequired, model.ErrCodeInvalidCredentials, model.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case model.ErrCodeInsufficientPermissions, model.ErrCodeAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeValidationFailed, model.ErrCodeEmailRequired, model.ErrCodeConflict:
		return http.StatusBadRequest
	case ErrorCodeRateLimited:
		return http.StatusTooManyRequests
	}
	if strings.HasSuffix(code, "_NOT_FOUND") {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Success: false,
		Error:   apiErr.Message,
		Code:    apiErr.Code,
		Details: apiErr.Details,
	})
}

// WriteAPIError はエラーコードから導いたステータスでレスポンスを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForCode(apiErr.Code), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// detailが空の場合は一般的なメッセージを返す。詳細は開発環境でのみ渡すこと。
func WriteInternalServerError(w http.ResponseWriter, detail string) {
	message := "Internal server error"
	if detail != "" {
		message = detail
	}
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     model.ErrCodeInternal,
		Message:  message,
		Category: "system",
	})
}
