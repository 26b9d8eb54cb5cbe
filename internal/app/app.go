package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hitoshi/blogflow/internal/auth"
	"github.com/hitoshi/blogflow/internal/blog"
	"github.com/hitoshi/blogflow/internal/cache"
	"github.com/hitoshi/blogflow/internal/comment"
	"github.com/hitoshi/blogflow/internal/config"
	"github.com/hitoshi/blogflow/internal/database"
	"github.com/hitoshi/blogflow/internal/events"
	"github.com/hitoshi/blogflow/internal/handler"
	"github.com/hitoshi/blogflow/internal/logger"
	"github.com/hitoshi/blogflow/internal/metrics"
	"github.com/hitoshi/blogflow/internal/middleware"
	"github.com/hitoshi/blogflow/internal/notification"
	"github.com/hitoshi/blogflow/internal/repository"
	"github.com/hitoshi/blogflow/internal/search"
	"github.com/hitoshi/blogflow/internal/security"
	"github.com/hitoshi/blogflow/internal/user"
	"github.com/hitoshi/blogflow/internal/worker/cleanup"
	"github.com/hitoshi/blogflow/internal/worker/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従って出力レベルを切り替える
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// migrate の引数は設定読み込み前に検証する
	var migration MigrateArgs
	if cmd == CommandMigrate {
		var err error
		migration, err = ParseMigrateArgs(args[1:])
		if err != nil {
			return err
		}
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("app_env", cfg.AppEnv),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, migration)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// optionalServices は未設定なら無効化される外部サービス群。
// 無効なものはnilのインターフェースとして渡す。
type optionalServices struct {
	cache     blog.Cache
	searcher  blog.Searcher
	publisher notification.Publisher
	closers   []func()
}

func (o *optionalServices) Close() {
	for i := len(o.closers) - 1; i >= 0; i-- {
		o.closers[i]()
	}
}

// connectOptionalServices はRedis、Meilisearch、NATSへ接続する。
// 接続に失敗したサービスは警告を出して無効化し、起動は継続する。
func connectOptionalServices(cfg *config.Config) *optionalServices {
	svc := &optionalServices{publisher: events.NopPublisher{}}

	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.TrendingCacheTTL)
		if err != nil {
			slog.Warn("redis cache disabled", slog.String("error", err.Error()))
		} else {
			svc.cache = redisCache
			svc.closers = append(svc.closers, func() { redisCache.Close() })
			slog.Info("redis cache enabled")
		}
	}

	if cfg.MeiliURL != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey, slog.Default())
		svc.searcher = meili
		svc.closers = append(svc.closers, meili.Close)
		slog.Info("meilisearch enabled")
	}

	if cfg.NATSURL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			slog.Warn("nats publisher disabled", slog.String("error", err.Error()))
		} else {
			svc.publisher = publisher
			svc.closers = append(svc.closers, publisher.Close)
			slog.Info("nats publisher enabled")
		}
	}

	return svc
}

// newMetrics はプロセス・ランタイムのコレクターを含むレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// services はserve/worker双方で使うドメインサービスの集合。
type services struct {
	auth          *auth.Service
	authenticator *auth.Authenticator
	user          *user.Service
	blog          *blog.Service
	comment       *comment.Service
	notification  *notification.Service
}

// buildServices はリポジトリとドメインサービスをワイヤリングする。
func buildServices(cfg *config.Config, db *sql.DB, opt *optionalServices, collector *metrics.Collector) *services {
	logger := slog.Default()

	// リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresRefreshSessionRepo(db)
	blogRepo := repository.NewPostgresBlogRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	notificationRepo := repository.NewPostgresNotificationRepo(db)

	// 通知はすべてのドメインサービスから使う
	notificationService := notification.NewService(notificationRepo, opt.publisher, collector, logger)

	// 認証: 外部IdPトークン → 外部IdP API → ローカルトークン の順に検証する
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	admins := auth.NewAdminSet(cfg.AdminEmails)

	verifierCfg := auth.VerifierConfig{
		Local:      tokens,
		AllowLocal: cfg.LegacyLocalTokens,
		Recorder:   collector,
		Logger:     logger,
	}
	if cfg.ProviderJWTSecret != "" {
		verifierCfg.ProviderToken = auth.NewProviderTokenVerifier(cfg.ProviderJWTSecret)
	}
	if cfg.ProviderURL != "" {
		verifierCfg.ProviderAPI = auth.NewProviderClient(auth.ProviderClientConfig{
			BaseURL: cfg.ProviderURL,
			APIKey:  cfg.ProviderAPIKey,
		})
	}
	directory := auth.NewDirectorySync(userRepo, notificationService, admins, logger)
	authenticator := auth.NewAuthenticator(auth.NewVerifier(verifierCfg), directory)

	authService := auth.NewService(userRepo, sessionRepo, tokens, admins, notificationService, auth.ServiceConfig{}, logger)
	userService := user.NewService(userRepo, sessionRepo, notificationService, logger)

	blogService := blog.NewService(blogRepo, blog.Dependencies{
		Searcher:  opt.searcher,
		Cache:     opt.cache,
		Notifier:  notificationService,
		Recorder:  collector,
		Sanitizer: security.NewContentSanitizer(),
		Logger:    logger,
	})
	commentService := comment.NewService(commentRepo, blogRepo, notificationService, blogService, collector, logger)

	return &services{
		auth:          authService,
		authenticator: authenticator,
		user:          userService,
		blog:          blogService,
		comment:       commentService,
		notification:  notificationService,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. 外部サービスとメトリクス
	opt := connectOptionalServices(cfg)
	defer opt.Close()

	reg, collector := newMetrics()

	// 3. ドメインサービス
	svc := buildServices(cfg, db, opt, collector)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Authenticator:     svc.authenticator,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              !cfg.IsDevelopment(),
		RateLimiter:       rateLimiter,
		HTTPRecorder:      collector,
		Logger:            slog.Default(),

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		ErrorConfig: handler.ErrorConfig{
			Development: cfg.IsDevelopment(),
			Logger:      slog.Default(),
		},

		AuthService:         svc.auth,
		UserService:         svc.user,
		BlogService:         svc.blog,
		CommentService:      svc.comment,
		NotificationService: svc.notification,

		FeedChannel: blog.FeedChannel{
			Title:       "blogflow",
			Description: "Latest published posts",
			SiteURL:     cfg.BaseURL,
		},
	}

	router := handler.NewRouter(deps)

	// 検索インデックスの欠落はAPIプロセス側でも補う
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if opt.searcher != nil {
		reindexJobs := scheduler.NewScheduler(slog.Default(), 1, scheduler.NewReindexJob(svc.blog, slog.Default()))
		go reindexJobs.Start(bgCtx, cfg.SchedulerInterval)
	}

	// 5. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// ブログ関連のジョブを短い間隔で、クリーンアップを長い間隔で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. 外部サービスとドメインサービス
	// 予約公開の通知と検索インデックス更新はAPIと同じ経路で行う
	opt := connectOptionalServices(cfg)
	defer opt.Close()

	reg, collector := newMetrics()
	svc := buildServices(cfg, db, opt, collector)

	// 3. ジョブの構築
	logger := slog.Default()
	blogJobs := scheduler.NewScheduler(logger, 0,
		scheduler.NewPublishJob(svc.blog, logger),
		scheduler.NewTrendingJob(svc.blog, logger),
		scheduler.NewReindexJob(svc.blog, logger),
	)
	cleanupJobs := scheduler.NewScheduler(logger, 1,
		cleanup.NewCleanupJob(db, logger, cfg.NotificationRetentionDays),
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("scheduler_interval", cfg.SchedulerInterval),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// 予約公開件数などをスクレイプできるよう、指定があればメトリクスを公開する
	if cfg.WorkerMetricsPort != "" {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("worker metrics server error", slog.String("error", err.Error()))
			}
		}()
		defer metricsServer.Close()
	}

	// クリーンアップをバックグラウンドで実行
	go cleanupJobs.Start(ctx, cfg.CleanupInterval)

	// ブログジョブをメインgoroutineで実行（ブロッキング）
	blogJobs.Start(ctx, cfg.SchedulerInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// up は未適用分をすべて適用し、down は指定ステップ数だけ戻し、version は現在のバージョンを出力する。
func runMigrate(cfg *config.Config, args MigrateArgs) error {
	slog.Info("running database migrations",
		slog.String("action", string(args.Action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch args.Action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, args.Steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", args.Steps))
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("database migration version",
			slog.String("version", strconv.FormatUint(uint64(version), 10)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}

	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
