package main

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"taskdeck-api/internal/auth"
	"taskdeck-api/internal/config"
	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/http/docs"
	"taskdeck-api/internal/http/handler"
	"taskdeck-api/internal/http/middleware"
	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/ratelimit"
	"taskdeck-api/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps holds everything buildRouter needs to wire routes.
type RouterDeps struct {
	Cfg         *config.Config
	Log         *logger.Logger
	Verifier    *auth.Verifier
	Users       auth.UserLoader
	Resolver    auth.TeamResolver
	RateLimiter *ratelimit.RedisRateLimiter
	Metrics     *telemetry.Metrics
	Pool        *pgxpool.Pool // readiness check

	// Handlers
	AuthHandler  *handler.AuthHandler
	TaskHandler  *handler.TaskHandler
	TeamHandler  *handler.TeamHandler
	AdminHandler *handler.AdminHandler
}

// buildRouter assembles the chi.Router with all middlewares and routes.
func buildRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(deps.Log))
	r.Use(middleware.RecoveryMiddleware(deps.Log))
	r.Use(telemetry.OTelMiddleware(deps.Cfg.OTELServiceName))
	if deps.Metrics != nil {
		r.Use(telemetry.MetricsMiddleware(deps.Metrics))
	}

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus scrape endpoint, optionally gated by a static token
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if token := deps.Cfg.MetricsToken; token != "" {
			presented := r.Header.Get("X-Metrics-Token")
			if presented == "" {
				presented = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("unauthorized"))
				return
			}
		}
		promhttp.Handler().ServeHTTP(w, r)
	})

	r.Get("/openapi.yaml", docs.OpenAPIHandler().ServeHTTP)
	r.Get("/docs", docs.ScalarDocsHandler("/openapi.yaml").ServeHTTP)

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Pool == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ready","note":"pool is nil"}`))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := deps.Pool.Ping(ctx); err != nil {
			deps.Log.Error(ctx, "readiness check failed: database unavailable", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"error","message":"database unavailable"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if deps.AuthHandler != nil {
		r.Post("/v1/auth/login", deps.AuthHandler.Login)
	}

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.Authenticate(deps.Verifier, deps.Users))
		r.Use(middleware.RateLimitMiddleware(deps.RateLimiter, deps.Cfg.RateLimitPerUserPerMin))

		if deps.AuthHandler != nil {
			r.Get("/auth/me", deps.AuthHandler.Me)
		}

		// Tasks: reads rely on the ownership filter inside the service;
		// mutations are additionally gated on resolved permissions.
		if deps.TaskHandler != nil {
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", deps.TaskHandler.ListTasks)
				r.With(auth.RequirePermission(domain.PermTasksCreate, deps.Resolver)).Post("/", deps.TaskHandler.CreateTask)
				r.Route("/{taskId}", func(r chi.Router) {
					r.Get("/", deps.TaskHandler.GetTask)
					r.Get("/history", deps.TaskHandler.GetHistory)
					r.With(auth.RequirePermission(domain.PermTasksUpdate, deps.Resolver)).Put("/", deps.TaskHandler.UpdateTask)
					r.With(auth.RequirePermission(domain.PermTasksDelete, deps.Resolver)).Delete("/", deps.TaskHandler.ArchiveTask)
					// Restore is authenticated only; the ownership filter
					// inside the service is the whole check.
					r.Post("/restore", deps.TaskHandler.RestoreTask)
					r.With(auth.RequirePermission(domain.PermTasksAssign, deps.Resolver)).Patch("/assign", deps.TaskHandler.ReassignTask)
				})
			})
		}

		// Teams: admin-only management surface.
		if deps.TeamHandler != nil {
			r.Route("/teams", func(r chi.Router) {
				r.Use(auth.RequireRole(domain.RoleAdmin))

				r.Get("/", deps.TeamHandler.ListTeams)
				r.Post("/", deps.TeamHandler.CreateTeam)
				r.Get("/permissions/available", deps.TeamHandler.AvailablePermissions)
				r.Route("/{teamId}", func(r chi.Router) {
					r.Get("/", deps.TeamHandler.GetTeam)
					r.Put("/", deps.TeamHandler.UpdateTeam)
					r.Delete("/", deps.TeamHandler.DeleteTeam)
				})
			})
		}

		// Admin: user management plus the cross-tenant task views.
		if deps.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireRole(domain.RoleAdmin))

				r.Route("/users", func(r chi.Router) {
					r.Get("/", deps.AdminHandler.ListUsers)
					r.Post("/", deps.AdminHandler.CreateUser)
					r.Route("/{userId}", func(r chi.Router) {
						r.Get("/", deps.AdminHandler.GetUser)
						r.Put("/", deps.AdminHandler.UpdateUser)
						r.Delete("/", deps.AdminHandler.DeleteUser)
						r.Patch("/roles", deps.AdminHandler.UpdateUserRoles)
						r.Patch("/teams", deps.AdminHandler.UpdateUserTeams)
						r.Patch("/permissions", deps.AdminHandler.UpdateUserPermissions)
					})
				})

				r.Route("/tasks", func(r chi.Router) {
					r.Get("/", deps.AdminHandler.ListTasks)
					r.Get("/stats", deps.AdminHandler.TaskStats)
					r.Patch("/{taskId}", deps.AdminHandler.UpdateTask)
					r.Patch("/{taskId}/assign", deps.AdminHandler.AssignTask)
				})
			})
		}
	})

	return r
}
