package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/config"
	"sentinel-auth/internal/repository/redis"
	"sentinel-auth/internal/util"
)

// HealthChecker reports readiness of the backing stores.
type HealthChecker func(ctx context.Context) map[string]string

// NewRouter assembles the middleware stack and mounts all routes.
func NewRouter(
	cfg *config.Config,
	authHandler *AuthHandler,
	adminHandler *AdminHandler,
	tokens *auth.TokenManager,
	limiter *redis.RateLimiter,
	health HealthChecker,
) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(loggerMiddleware())
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		checks := map[string]string{}
		if health != nil {
			checks = health(r.Context())
			for _, state := range checks {
				if state != "ok" {
					status = http.StatusServiceUnavailable
				}
			}
		}
		respondWithJSON(w, status, map[string]interface{}{
			"status": http.StatusText(status),
			"checks": checks,
		})
	})

	var sendLimit, verifyLimit func(http.Handler) http.Handler
	if cfg.RateLimit.SendOTPLimit > 0 {
		sendLimit = RateLimit(limiter, "send-otp", cfg.RateLimit.SendOTPLimit, cfg.RateLimit.Window)
	}
	if cfg.RateLimit.VerifyOTPLimit > 0 {
		verifyLimit = RateLimit(limiter, "verify-otp", cfg.RateLimit.VerifyOTPLimit, cfg.RateLimit.Window)
	}

	router.Route("/api/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, tokens, sendLimit, verifyLimit)
		adminHandler.RegisterRoutes(r, tokens)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusNotFound, Response{Success: false, Error: "endpoint not found"})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusMethodNotAllowed, Response{Success: false, Error: "method not allowed"})
	})

	return router
}

func loggerMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				util.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
