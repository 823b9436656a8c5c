package handler

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/repository/redis"
	"sentinel-auth/internal/util"
)

type contextKey string

const claimsKey contextKey = "session_claims"

// ClaimsFromContext returns the verified session claims placed there by the
// Authenticator middleware, or nil for an unauthenticated request.
func ClaimsFromContext(ctx context.Context) *auth.SessionClaims {
	claims, _ := ctx.Value(claimsKey).(*auth.SessionClaims)
	return claims
}

// Authenticator verifies the bearer token and stores its claims in the
// request context. Requests without a valid token are rejected outright;
// routes that allow anonymous access simply do not mount this middleware.
func Authenticator(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				respondWithError(w, http.StatusUnauthorized, auth.ErrUnauthenticated, "Missing bearer token")
				return
			}

			claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, auth.ErrInvalidToken, "Invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles gates a route on the role hierarchy. Declaring admin also
// admits superadmin; an empty list leaves the route open to any
// authenticated identity.
func RequireRoles(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				respondWithError(w, http.StatusUnauthorized, auth.ErrUnauthenticated, "Authentication required")
				return
			}

			actual, _ := auth.ParseRole(claims.Role)
			if err := auth.Authorize(roles, actual); err != nil {
				respondWithError(w, statusFor(err), err, "Access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit throttles a route per client address with a fixed window.
func RateLimit(limiter *redis.RateLimiter, action string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), action, clientIP(r), limit, window)
			if err != nil {
				util.Warn("Rate limiter error", util.ErrorField(err))
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				respondWithJSON(w, http.StatusTooManyRequests, Response{
					Success: false,
					Error:   "rate limit exceeded",
					Message: "Too many requests, slow down",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP trusts middleware.RealIP to have rewritten RemoteAddr from the
// forwarding headers already.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
