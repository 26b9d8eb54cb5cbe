// Package model はドメインモデルを定義する。
package model

import "fmt"

// FieldError は入力検証エラーのフィールド単位の詳細。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError は統一エラーフォーマットを表す。
// ハンドラー層でCodeからHTTPステータスに変換される。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // クライアントに返すメッセージ
	Category string       // カテゴリ: auth, permission, validation, blog, comment, notification, user, system
	Details  []FieldError // 入力検証エラーの詳細（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthenticationRequired  = "AUTHENTICATION_REQUIRED"
	ErrCodeInvalidCredentials      = "INVALID_CREDENTIALS"
	ErrCodeInvalidToken            = "INVALID_TOKEN"
	ErrCodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	ErrCodeAccessDenied            = "ACCESS_DENIED"
	ErrCodeBlogNotFound            = "BLOG_NOT_FOUND"
	ErrCodeCommentNotFound         = "COMMENT_NOT_FOUND"
	ErrCodeNotificationNotFound    = "NOTIFICATION_NOT_FOUND"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeValidationFailed        = "VALIDATION_FAILED"
	ErrCodeEmailRequired           = "EMAIL_REQUIRED"
	ErrCodeConflict                = "CONFLICT"
	ErrCodeInternal                = "INTERNAL_ERROR"
)

// NewAuthenticationRequiredError は認証情報がない・無効な場合のエラーを生成する。
func NewAuthenticationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthenticationRequired,
		Message:  "Authentication required",
		Category: "auth",
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードの誤りを表す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
	}
}

// NewInvalidTokenError はリフレッシュトークンが無効・失効済みの場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid or expired token",
		Category: "auth",
	}
}

// NewInsufficientPermissionsError はロール不足のエラーを生成する。
func NewInsufficientPermissionsError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientPermissions,
		Message:  "Insufficient permissions",
		Category: "permission",
	}
}

// NewAccessDeniedError は所有権のないリソース操作のエラーを生成する。
func NewAccessDeniedError(message string) *APIError {
	if message == "" {
		message = "Access denied"
	}
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  message,
		Category: "permission",
	}
}

// NewBlogNotFoundError はブログが存在しない、または閲覧権限がない場合のエラーを生成する。
func NewBlogNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeBlogNotFound,
		Message:  "Blog not found",
		Category: "blog",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  "Comment not found",
		Category: "comment",
	}
}

// NewNotificationNotFoundError は通知未検出エラーを生成する。
func NewNotificationNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  "Notification not found",
		Category: "notification",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "user",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string, details ...FieldError) *APIError {
	if message == "" {
		message = "Validation failed"
	}
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Details:  details,
	}
}

// NewInvalidParentCommentError は返信先コメントが不正な場合のエラーを生成する。
func NewInvalidParentCommentError() *APIError {
	return NewValidationError("Invalid parent comment", FieldError{
		Field:   "parentId",
		Message: "parent must be a top-level comment on the same blog",
	})
}

// NewEmailRequiredError は検証済みIDにメールアドレスがない場合のエラーを生成する。
func NewEmailRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailRequired,
		Message:  "email required",
		Category: "auth",
	}
}

// NewConflictError は一意制約違反のエラーを生成する。
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  message,
		Category: "validation",
	}
}
