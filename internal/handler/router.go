package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/blogforge/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	StatusRecorder    middleware.HTTPStatusRecorder

	// Prometheusスクレイプ用。nilの場合は/metricsを公開しない。
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// タイトル
	TitleService TitleServiceInterface

	// 記事
	PostService PostServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SecurityHeaders → SessionMiddleware → CSRF → RateLimit(General)
//
// サインアップ・ログイン（/auth/signup、/auth/login）と/healthは
// セッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	titleHandler := NewTitleHandler(deps.TitleService)
	postHandler := NewPostHandler(deps.PostService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Post("/auth/signup", authHandler.Signup)
	r.Post("/auth/login", authHandler.Login)
	r.Post("/auth/logout", authHandler.Logout)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/auth/me", authHandler.Me)

		// タイトル管理
		r.Route("/api/titles", func(r chi.Router) {
			r.Get("/", titleHandler.ListTitles)

			// POST /api/titles/generate - タイトル生成（生成専用レート制限を追加）
			r.With(deps.RateLimiter.GenerateMiddleware()).Post("/generate", titleHandler.GenerateTitles)

			r.Post("/cleanup", titleHandler.CleanupTitles)
		})

		// 記事管理
		r.Route("/api/posts", func(r chi.Router) {
			r.Get("/", postHandler.ListPosts)

			// 記事生成（生成専用レート制限を追加）
			r.With(deps.RateLimiter.GenerateMiddleware()).Post("/generate", postHandler.GeneratePost)
			r.With(deps.RateLimiter.GenerateMiddleware()).Post("/generate-batch", postHandler.GenerateBatch)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.GetPost)
				r.Patch("/", postHandler.SavePost)
				r.Delete("/", postHandler.DeletePost)
			})
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.GetProfile)
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
