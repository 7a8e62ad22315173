package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mypt/mypt/internal/middleware"
)

// HealthChecker は依存先の疎通確認を行うインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// DataService はリモートデータアクセスのファサードが提供する操作の集合。
// facade.Facadeが実装する。
type DataService interface {
	UserServiceInterface
	GoalServiceInterface
	PlanServiceInterface
	MessageServiceInterface
	ExerciseServiceInterface
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Authenticator     middleware.Authenticator
	StatusRecorder    middleware.StatusRecorder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// データアクセス
	Data DataService
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → CORS → SecurityHeaders → Recovery → Logging → (CSRF) → Session → RateLimit(General)
//
// 認証ルート（/auth/*）と運用ルート（/health, /metrics）はセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.Data)
	goalHandler := NewGoalHandler(deps.Data)
	planHandler := NewPlanHandler(deps.Data)
	messageHandler := NewMessageHandler(deps.Data)
	exerciseHandler := NewExerciseHandler(deps.Data)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	r.Route("/auth", func(r chi.Router) {
		r.Use(csrf)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(csrf)
		r.Use(middleware.NewSessionMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/users/{id}", userHandler.GetUser)

		r.Route("/api/customers", func(r chi.Router) {
			r.Get("/", userHandler.ListCustomers)
			r.Post("/", userHandler.CreateCustomer)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", userHandler.DeleteCustomer)

				r.Get("/goals", goalHandler.ListGoals)
				r.Post("/goals", goalHandler.AddGoal)
				r.Post("/goals/delete", goalHandler.DeleteGoals)
				r.Put("/goals/{goalID}/completed", goalHandler.SetGoalCompleted)

				r.Get("/plans", planHandler.ListPlans)
				r.Put("/plans", planHandler.SavePlan)
				r.Delete("/plans/{planID}", planHandler.DeletePlan)
			})
		})

		r.Route("/api/messages", func(r chi.Router) {
			r.Post("/", messageHandler.SendMessage)
			r.Get("/inbox", messageHandler.ListInbox)
			r.Get("/outbox", messageHandler.ListOutbox)
		})

		r.Route("/api/exercises", func(r chi.Router) {
			r.Get("/", exerciseHandler.ListExercises)
			r.Post("/", exerciseHandler.CreateExercise)
			r.Post("/delete", exerciseHandler.DeleteExercises)
			r.Put("/{id}", exerciseHandler.UpdateExercise)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
