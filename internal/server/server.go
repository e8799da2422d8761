// Package server wires the API routes onto a ServeMux.
package server

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"

	"shared-tasks-backend/internal/activity"
	"shared-tasks-backend/internal/auth"
	"shared-tasks-backend/internal/categories"
	"shared-tasks-backend/internal/delegations"
	"shared-tasks-backend/internal/httpx"
	"shared-tasks-backend/internal/store"
	"shared-tasks-backend/internal/tasks"
)

const prefix = "/api/v1"

type Options struct {
	Store         store.Store
	JWTSecret     []byte
	TokenTTL      time.Duration
	BcryptCost    int
	AllowedOrigin string
	Logger        *log.Logger

	// RateLimit caps requests per client IP over RateWindow, and
	// LoginRateLimit caps POST /auth/login on top of it. Zero disables.
	RateLimit      int
	LoginRateLimit int
	RateWindow     time.Duration
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if len(opts.JWTSecret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	st, logger := opts.Store, opts.Logger
	tokens := auth.Tokens{Secret: opts.JWTSecret, TTL: opts.TokenTTL, BcryptCost: opts.BcryptCost}
	authMW := auth.New(opts.JWTSecret, st, logger)
	global := newIPLimiter(opts.RateLimit, opts.RateWindow, "too many requests, please try again later")
	login := newIPLimiter(opts.LoginRateLimit, opts.RateWindow, "too many login attempts, please try again later")

	mux := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+prefix+path, h)
	}
	protect := func(pattern string, h http.HandlerFunc) {
		handle(pattern, authMW.Wrap(h))
	}

	health := func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
	mux.HandleFunc("GET /health", health)
	handle("GET /health", health)

	// ----- AUTH -----
	handle("POST /auth/register", auth.RegisterHandler(st, tokens, logger))
	handle("POST /auth/login", login.wrapFunc(auth.LoginHandler(st, tokens, logger)))
	protect("GET /auth/me", auth.MeHandler())
	protect("GET /auth/profile", auth.MeHandler())
	protect("PATCH /auth/profile", auth.UpdateProfileHandler(st, logger))
	protect("PATCH /auth/email", auth.UpdateEmailHandler(st, logger))
	protect("PATCH /auth/password", auth.UpdatePasswordHandler(st, tokens, logger))
	protect("PATCH /auth/default-context", auth.UpdateDefaultContextHandler(st, logger))
	protect("POST /auth/logout", auth.LogoutHandler())
	protect("DELETE /auth/account", auth.DeleteAccountHandler(st, logger))

	// ----- DELEGATIONS -----
	protect("GET /delegations/search-users", delegations.SearchUsersHandler(st, logger))
	protect("GET /delegations", delegations.ListHandler(st, logger))
	protect("POST /delegations", delegations.CreateHandler(st, logger))
	protect("PUT /delegations/{id}", delegations.UpdateHandler(st, logger))
	protect("PATCH /delegations/{id}", delegations.UpdateHandler(st, logger))
	protect("DELETE /delegations/{id}", delegations.DeleteHandler(st, logger))
	protect("POST /delegations/{id}/accept", delegations.AcceptHandler(st, logger))
	protect("POST /delegations/{id}/reject", delegations.RejectHandler(st, logger))
	protect("POST /delegations/{id}/leave", delegations.LeaveHandler(st, logger))
	protect("GET /delegations/{ownerId}/tasks", delegations.OwnerTasksHandler(st, logger))
	protect("GET /delegations/{ownerId}/categories", delegations.OwnerCategoriesHandler(st, logger))

	// ----- CATEGORIES -----
	protect("GET /categories", categories.ListHandler(st, logger))
	protect("POST /categories", categories.CreateHandler(st, logger))
	protect("GET /categories/{id}", categories.GetHandler(st, logger))
	protect("PUT /categories/{id}", categories.UpdateHandler(st, logger))
	protect("DELETE /categories/{id}", categories.DeleteHandler(st, logger))

	// ----- TASKS -----
	protect("GET /tasks/stats", tasks.StatsHandler(st, logger))
	protect("GET /tasks/export", tasks.ExportHandler(st, logger))
	protect("GET /tasks", tasks.ListHandler(st, logger))
	protect("POST /tasks", tasks.CreateHandler(st, logger))
	protect("GET /tasks/{id}", tasks.GetHandler(st, logger))
	protect("PUT /tasks/{id}", tasks.UpdateHandler(st, logger))
	protect("DELETE /tasks/{id}", tasks.DeleteHandler(st, logger))
	protect("PATCH /tasks/{id}/complete", tasks.CompleteHandler(st, logger))
	protect("PATCH /tasks/{id}/reopen", tasks.ReopenHandler(st, logger))

	// ----- ACTIVITY -----
	protect("GET /activity", activity.ListHandler(st, logger))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusNotFound, "route not found")
	})

	origins := []string{"*"}
	if o := strings.TrimSpace(opts.AllowedOrigin); o != "" && o != "*" {
		origins = []string{o}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return c.Handler(global.wrap(mux)), nil
}
