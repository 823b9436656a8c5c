package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/service"
	"sentinel-auth/internal/util"
)

// AuthHandler exposes the OTP login and signup flows.
type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRoutes mounts the auth endpoints. The rate limit middlewares may
// be nil when limiting is disabled.
func (h *AuthHandler) RegisterRoutes(r chi.Router, tokens *auth.TokenManager, sendLimit, verifyLimit func(http.Handler) http.Handler) {
	withLimit := func(r chi.Router, limit func(http.Handler) http.Handler) chi.Router {
		if limit == nil {
			return r
		}
		return r.With(limit)
	}

	r.Route("/auth", func(r chi.Router) {
		withLimit(r, sendLimit).Post("/send-otp", h.SendOTP)
		withLimit(r, verifyLimit).Post("/verify-otp", h.VerifyOTP)
		withLimit(r, verifyLimit).Post("/signup", h.Signup)

		r.Group(func(r chi.Router) {
			r.Use(Authenticator(tokens))
			r.Get("/me", h.Me)
		})
	})
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
}

type sendOTPResponse struct {
	Message    string `json:"message"`
	UserExists bool   `json:"user_exists"`
}

// SendOTP issues a fresh code for the phone. The response reveals whether an
// account exists so the client can route to login or signup.
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	exists, err := h.authService.RequestCode(r.Context(), req.Phone)
	if err != nil {
		respondWithError(w, statusFor(err), err, "Failed to send OTP")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(sendOTPResponse{
		Message:    "OTP sent",
		UserExists: exists,
	}, "OTP sent successfully"))
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	OTP   string `json:"otp"`
}

type sessionResponse struct {
	Token    string      `json:"token"`
	Identity interface{} `json:"identity"`
}

// VerifyOTP is the login endpoint: a correct code for a registered phone
// yields a session token. An unknown phone fails with 401 after the code is
// consumed.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.authService.Login(r.Context(), req.Phone, req.OTP, clientInfo(r))
	if err != nil {
		if errors.Is(err, auth.ErrIdentityNotFound) {
			respondWithError(w, http.StatusUnauthorized, errors.New("no such account, sign up first"), "Login failed")
			return
		}
		respondWithError(w, statusFor(err), err, "Login failed")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(sessionResponse{
		Token:    result.Token,
		Identity: result.Identity.Summary(),
	}, "Login successful"))
}

type signupRequest struct {
	Phone    string `json:"phone"`
	OTP      string `json:"otp"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// Signup creates an account after OTP verification. The phone must be new;
// a conflict is only reported once the caller has proven code possession.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if util.ContainsSuspicious(req.FullName) || util.ContainsSuspicious(req.Email) {
		respondWithError(w, http.StatusBadRequest, errors.New("input contains disallowed characters"), "Signup failed")
		return
	}
	fullName := util.SanitizeInput(req.FullName)
	email := util.SanitizeInput(req.Email)

	result, err := h.authService.Signup(r.Context(), req.Phone, req.OTP, fullName, email, clientInfo(r))
	if err != nil {
		respondWithError(w, statusFor(err), err, "Signup failed")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(sessionResponse{
		Token:    result.Token,
		Identity: result.Identity.Summary(),
	}, "Signup successful"))
}

// Me returns the authenticated identity's summary.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		respondWithError(w, http.StatusUnauthorized, auth.ErrUnauthenticated, "Authentication required")
		return
	}

	identity, err := h.authService.Me(r.Context(), claims)
	if err != nil {
		respondWithError(w, statusFor(err), err, "Failed to resolve identity")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(identity.Summary(), "Identity retrieved"))
}

func clientInfo(r *http.Request) service.ClientInfo {
	return service.ClientInfo{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
