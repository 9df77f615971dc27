package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appMiddleware "github.com/quizdeck/quizdeck-api/app/middleware"
	"github.com/quizdeck/quizdeck-api/internal/api/admin"
	"github.com/quizdeck/quizdeck-api/internal/api/attempt"
	"github.com/quizdeck/quizdeck-api/internal/api/auth"
	"github.com/quizdeck/quizdeck-api/internal/api/category"
	"github.com/quizdeck/quizdeck-api/internal/api/profile"
	"github.com/quizdeck/quizdeck-api/internal/api/quiz"
	"github.com/quizdeck/quizdeck-api/internal/types"
)

// Config carries the wired handlers and middleware the router mounts.
type Config struct {
	Logger *slog.Logger

	AuthHandler     *auth.AuthHandler
	ProfileHandler  *profile.Handler
	QuizHandler     *quiz.Handler
	AttemptHandler  *attempt.Handler
	CategoryHandler *category.Handler
	AdminHandler    *admin.Handler

	Authenticate func(http.Handler) http.Handler
	Roles        auth.RoleLookup
	Guard        *appMiddleware.Guard

	// Pages serves the browser-facing routes behind the guard. Defaults to
	// a minimal placeholder when nil.
	Pages http.HandlerFunc
}

// SetupRouter builds the application router. Server-wide middleware
// (request ID, logging, recoverer) is applied before mounting this in main.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// Public routes.
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.RefreshSession)
			r.Get("/auth/callback", cfg.AuthHandler.ConfirmCallback)

			r.Get("/quizzes", cfg.QuizHandler.ListPublicQuizzes)
			r.Get("/quizzes/{quizID}", cfg.QuizHandler.GetQuiz)
			r.Get("/categories", cfg.CategoryHandler.ListCategories)
			r.Get("/profiles/{profileID}", cfg.ProfileHandler.GetProfileByID)
		})

		// Authenticated routes.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Get("/auth/session", cfg.AuthHandler.GetSession)

			r.Get("/profiles/me", cfg.ProfileHandler.GetMyProfile)
			r.Put("/profiles/me", cfg.ProfileHandler.UpdateMyProfile)

			r.Post("/quizzes", cfg.QuizHandler.CreateQuiz)
			r.Get("/quizzes/mine", cfg.QuizHandler.ListMyQuizzes)
			r.Patch("/quizzes/{quizID}/status", cfg.QuizHandler.UpdateQuizStatus)
			r.Delete("/quizzes/{quizID}", cfg.QuizHandler.DeleteQuiz)

			r.Route("/quizzes/{quizID}/attempt", func(r chi.Router) {
				r.Post("/", cfg.AttemptHandler.Start)
				r.Get("/", cfg.AttemptHandler.State)
				r.Post("/select", cfg.AttemptHandler.Select)
				r.Post("/next", cfg.AttemptHandler.Next)
				r.Post("/previous", cfg.AttemptHandler.Previous)
				r.Post("/restart", cfg.AttemptHandler.Restart)
				r.Get("/result", cfg.AttemptHandler.Result)
			})
		})

		// Moderation routes; the role check runs against the profiles table
		// on every request so a revoked admin loses access immediately.
		r.Group(func(r chi.Router) {
			r.Use(cfg.Authenticate)
			r.Use(auth.RequireRole(cfg.Logger, cfg.Roles, types.RoleAdmin))

			r.Get("/admin/users", cfg.AdminHandler.ListUsers)
			r.Put("/admin/users/{userID}/role", cfg.AdminHandler.UpdateUserRole)
			r.Delete("/admin/users/{userID}", cfg.AdminHandler.DeleteUser)

			r.Get("/admin/quizzes", cfg.AdminHandler.ListAllQuizzes)
			r.Patch("/admin/quizzes/{quizID}/status", cfg.AdminHandler.UpdateQuizStatus)
			r.Delete("/admin/quizzes/{quizID}", cfg.AdminHandler.DeleteQuiz)
			r.Get("/admin/stats", cfg.AdminHandler.GetStats)

			r.Post("/admin/categories", cfg.CategoryHandler.CreateCategory)
			r.Put("/admin/categories/{categoryID}", cfg.CategoryHandler.UpdateCategory)
			r.Delete("/admin/categories/{categoryID}", cfg.CategoryHandler.DeleteCategory)
		})
	})

	// Browser page routes sit behind the access guard, which refreshes
	// sessions and issues the login and unauthorized redirects.
	pages := cfg.Pages
	if pages == nil {
		pages = placeholderPage
	}
	r.Group(func(r chi.Router) {
		r.Use(cfg.Guard.Handler)
		r.Get("/*", pages)
	})

	return r
}

func placeholderPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("QuizDeck"))
}
