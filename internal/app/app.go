// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/blogforge/internal/auth"
	"github.com/hitoshi/blogforge/internal/cache"
	"github.com/hitoshi/blogforge/internal/config"
	"github.com/hitoshi/blogforge/internal/database"
	"github.com/hitoshi/blogforge/internal/handler"
	"github.com/hitoshi/blogforge/internal/llm"
	"github.com/hitoshi/blogforge/internal/logger"
	"github.com/hitoshi/blogforge/internal/metrics"
	"github.com/hitoshi/blogforge/internal/middleware"
	"github.com/hitoshi/blogforge/internal/post"
	"github.com/hitoshi/blogforge/internal/render"
	"github.com/hitoshi/blogforge/internal/repository"
	"github.com/hitoshi/blogforge/internal/security"
	"github.com/hitoshi/blogforge/internal/title"
	"github.com/hitoshi/blogforge/internal/user"
	"github.com/hitoshi/blogforge/internal/worker/cleanup"
	"github.com/hitoshi/blogforge/internal/worker/reconcile"
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

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	titleRepo := repository.NewPostgresTitleRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	usageRepo := repository.NewPostgresUsageRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ページキャッシュの初期化（REDIS_URL未設定ならキャッシュ無効）
	var pageCache *cache.PageCache
	if cfg.RedisURL != "" {
		store, err := cache.NewRedisStore(cfg.RedisURL)
		if err != nil {
			// キャッシュはベストエフォート。接続失敗時は無効化して続行する。
			slog.Warn("Redisへの接続に失敗したためキャッシュを無効化します",
				slog.String("error", err.Error()),
			)
		} else {
			defer store.Close()
			pageCache = cache.NewPageCache(store, slog.Default(), collector, cfg.CacheTTL)
			slog.Info("page cache enabled")
		}
	}

	// 5. LLMクライアントの初期化
	llmClient, err := llm.NewOpenAIClient(llm.Settings{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	})
	if err != nil {
		return fmt.Errorf("failed to init LLM client: %w", err)
	}

	// 6. ドメインサービスの初期化
	authService := auth.NewService(
		userRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	titleService := title.NewService(
		titleRepo, llmClient, slog.Default(), collector, cfg.LLMTemperature,
	)

	sanitizer := security.NewContentSanitizer()
	renderer := render.NewRenderer(sanitizer)

	postService := post.NewService(
		postRepo, titleRepo, usageRepo, llmClient, pageCache, renderer,
		slog.Default(), collector,
		post.Config{
			PostsPerPage:       cfg.PostsPerPage,
			MaxPostsPerUser:    cfg.MaxPostsPerUser,
			BatchMaxConcurrent: cfg.BatchMaxConcurrent,
			Temperature:        cfg.LLMTemperature,
		},
	)

	userService := user.NewService(userRepo, sessionRepo, usageRepo)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		StatusRecorder: collector,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		TitleService: titleService,
		PostService:  postService,
		UserService:  userService,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // LLM生成はレスポンスに時間がかかる
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
// DB接続を開き、使用量整合ジョブとセッションクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	usageRepo := repository.NewPostgresUsageRepo(db)

	// 3. ジョブの初期化
	reconcileJob := reconcile.NewReconcileJob(usageRepo, slog.Default())
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())

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
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
	)

	// セッションクリーンアップを日次でバックグラウンド実行
	go cleanupJob.Start(ctx, 24*time.Hour)

	// 使用量整合ジョブをメインgoroutineで実行（ブロッキング）
	reconcileJob.Start(ctx, cfg.ReconcileInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// rateLimiterConfig はconfigのreq/min単位の設定をrate.Limit（req/sec）に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rateLimitPerMinute(cfg.RateLimitGeneral)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitGenerate > 0 {
		rlCfg.GenerateRate = rateLimitPerMinute(cfg.RateLimitGenerate)
		rlCfg.GenerateBurst = cfg.RateLimitGenerate
	}
	return rlCfg
}

// rateLimitPerMinute はreq/minの値をrate.Limit（req/sec）に変換する。
func rateLimitPerMinute(perMin int) rate.Limit {
	return rate.Limit(float64(perMin) / 60.0)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
