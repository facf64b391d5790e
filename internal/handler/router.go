package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/todoman/internal/metrics"
	"github.com/hitoshi/todoman/internal/middleware"
)

// DBPinger はヘルスチェックに必要なデータベース接続インターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder

	// サービス
	TaskManager TaskManagerInterface
	UserManager UserManagerInterface
	AuthService AuthServiceInterface
	UserConfig  UserHandlerConfig

	// 運用
	DB              DBPinger
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF → (Session → RateLimit)
//
// ログイン・登録ルートはセッションミドルウェアの外に配置し、IPベースの
// レート制限のみを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	taskHandler := NewTaskHandler(deps.TaskManager, deps.UserManager)
	userHandler := NewUserHandler(deps.UserManager, deps.AuthService, deps.UserConfig)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB))
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.MetricsGatherer))
	}
	r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	r.Handle("/static/*", StaticHandler())

	r.Route("/user", func(r chi.Router) {
		r.Get("/register", userHandler.RegisterPage)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", userHandler.Register)
		r.Get("/login", userHandler.LoginPage)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login_check", userHandler.LoginCheck)
		r.Post("/logout", userHandler.Logout)
	})

	// ルートはタスク一覧へ誘導
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/task/", http.StatusFound)
	})

	// --- 認証が必要なページルート（未認証はログインページへ） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, middleware.SessionOptions{
			RedirectTo: "/user/login",
		}))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/task/", taskHandler.ListPage)
	})

	// --- 認証が必要なAPIルート（未認証は401エンベロープ） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, middleware.SessionOptions{}))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/task/save", taskHandler.SaveTask)
		r.Post("/task/delete", taskHandler.DeleteTask)
		r.Get("/user/me", userHandler.Me)
	})

	return r
}

// NewHealthHandler はデータベース接続を確認するヘルスチェックハンドラーを返す。
// GET /health
func NewHealthHandler(db DBPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}
}
