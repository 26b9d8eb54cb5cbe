package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/blogflow/internal/blog"
	"github.com/hitoshi/blogflow/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.TokenAuthenticator
	CORSAllowedOrigin string // カンマ区切りで複数指定可
	HSTS              bool
	RateLimiter       *middleware.RateLimiter
	HTTPRecorder      middleware.HTTPRecorder
	Logger            *slog.Logger

	// 運用エンドポイント。MetricsHandlerがnilなら /metrics は公開しない
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// エラーレスポンス
	ErrorConfig ErrorConfig

	AuthService         AuthServiceInterface
	UserService         UserServiceInterface
	BlogService         BlogServiceInterface
	CommentService      CommentServiceInterface
	NotificationService NotificationServiceInterface

	// RSSフィードのチャンネル情報
	FeedChannel blog.FeedChannel
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → SecurityHeaders → CORS → Logging → Metrics → (Auth → RateLimit) → Handler
//
// 認証方式ごとにグループを分け、レート制限は認証の後に置いてユーザー単位で数える。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}

	authMW := middleware.NewAuth(deps.Authenticator, logger)
	general := deps.RateLimiter.GeneralMiddleware()

	authHandler := NewAuthHandler(deps.AuthService, deps.ErrorConfig)
	userHandler := NewUserHandler(deps.UserService, deps.ErrorConfig)
	blogHandler := NewBlogHandler(deps.BlogService, deps.FeedChannel, deps.ErrorConfig)
	commentHandler := NewCommentHandler(deps.CommentService, deps.ErrorConfig)
	notificationHandler := NewNotificationHandler(deps.NotificationService, deps.ErrorConfig)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker, logger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.With(general).Get("/feed.xml", blogHandler.RSS)

	// 認証系（認証用の厳しいレート制限）
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
		r.Post("/api/auth/refresh", authHandler.Refresh)
	})
	r.With(general).Post("/api/auth/logout", authHandler.Logout)

	// --- 認証任意のルート ---
	// 無効なトークンは匿名として扱い、閲覧範囲だけが変わる
	r.Group(func(r chi.Router) {
		r.Use(authMW.OptionalAuth)
		r.Use(general)

		r.Get("/api/blogs", blogHandler.List)
		r.Get("/api/blogs/trending", blogHandler.Trending)
		r.Get("/api/blogs/{identifier}", blogHandler.Get)
		r.Get("/api/users/{username}", userHandler.GetProfile)
		r.Get("/api/comments/blog/{blogId}", commentHandler.ListByBlog)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(authMW.Authenticate)
		r.Use(general)

		r.Route("/api/auth/me", func(r chi.Router) {
			r.Get("/", authHandler.Me)
			r.Put("/", userHandler.UpdateMe)
			r.Delete("/", userHandler.DeleteMe)
		})

		r.Post("/api/blogs", blogHandler.Create)
		r.Put("/api/blogs/{id}", blogHandler.Update)
		r.Delete("/api/blogs/{id}", blogHandler.Delete)
		r.Post("/api/blogs/{id}/like", blogHandler.ToggleLike)

		r.Post("/api/comments", commentHandler.Create)
		r.Put("/api/comments/{id}", commentHandler.Update)
		r.Delete("/api/comments/{id}", commentHandler.Delete)

		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Get("/unread-count", notificationHandler.UnreadCount)
			r.Put("/read-all", notificationHandler.MarkAllRead)
			r.Delete("/read", notificationHandler.DeleteAllRead)
			r.Put("/{id}/read", notificationHandler.MarkRead)
			r.Put("/{id}/unread", notificationHandler.MarkUnread)
			r.Delete("/{id}", notificationHandler.Delete)
		})

		// 管理者専用
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin())

			r.Get("/api/users", userHandler.List)
			r.Put("/api/users/{id}/role", userHandler.SetRole)
			r.Put("/api/blogs/{id}/status", blogHandler.SetStatus)
		})
	})

	return r
}
