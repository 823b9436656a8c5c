package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sentinel-auth/internal/auth"
	"sentinel-auth/internal/models"
	"sentinel-auth/internal/service"
	"sentinel-auth/internal/util"
)

// AdminHandler exposes identity administration and audit review. Every route
// here sits behind the authenticator and the admin role gate; the per-target
// management policy is enforced in the service.
type AdminHandler struct {
	identityService *service.IdentityService
	auditService    *service.AuditService
}

func NewAdminHandler(identityService *service.IdentityService, auditService *service.AuditService) *AdminHandler {
	return &AdminHandler{
		identityService: identityService,
		auditService:    auditService,
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router, tokens *auth.TokenManager) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(Authenticator(tokens))
		r.Use(RequireRoles(auth.RoleAdmin))

		r.Post("/identities", h.CreateIdentity)
		r.Get("/identities", h.ListIdentities)
		r.Patch("/identities/{identityID}/role", h.UpdateIdentityRole)
		r.Delete("/identities/{identityID}", h.DeleteIdentity)

		r.Get("/login-logs/{role}", h.LoginLogs)
	})
}

type createIdentityRequest struct {
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (h *AdminHandler) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req createIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if util.ContainsSuspicious(req.FullName) || util.ContainsSuspicious(req.Email) {
		respondWithError(w, http.StatusBadRequest, errors.New("input contains disallowed characters"), "Failed to create identity")
		return
	}

	claims := ClaimsFromContext(r.Context())
	identity, err := h.identityService.Create(r.Context(), claims,
		req.Phone, util.SanitizeInput(req.Email), util.SanitizeInput(req.FullName), req.Role)
	if err != nil {
		respondWithError(w, statusFor(err), err, "Failed to create identity")
		return
	}

	respondWithJSON(w, http.StatusCreated, successResponse(identity.Summary(), "Identity created"))
}

func (h *AdminHandler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		role = auth.RoleUser.String()
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	claims := ClaimsFromContext(r.Context())
	identities, err := h.identityService.List(r.Context(), claims, role, limit)
	if err != nil {
		respondWithError(w, statusFor(err), err, "Failed to list identities")
		return
	}

	summaries := make([]models.IdentitySummary, 0, len(identities))
	for _, identity := range identities {
		summaries = append(summaries, identity.Summary())
	}
	respondWithJSON(w, http.StatusOK, successResponse(summaries, "Identities retrieved"))
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (h *AdminHandler) UpdateIdentityRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	claims := ClaimsFromContext(r.Context())
	identity, err := h.identityService.UpdateRole(r.Context(), claims,
		chi.URLParam(r, "identityID"), req.Role)
	if err != nil {
		respondWithError(w, statusFor(err), err, "Failed to update role")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(identity.Summary(), "Role updated"))
}

func (h *AdminHandler) DeleteIdentity(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	err := h.identityService.Delete(r.Context(), claims, chi.URLParam(r, "identityID"))
	if err != nil {
		respondWithError(w, statusFor(err), err, "Failed to delete identity")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Identity deleted"))
}

// LoginLogs serves the audit trail for one role. The user trail is open to
// any admin; the privileged trails require superadmin.
func (h *AdminHandler) LoginLogs(w http.ResponseWriter, r *http.Request) {
	role, ok := auth.ParseRole(chi.URLParam(r, "role"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, auth.ErrInvalidRole, "Unknown role")
		return
	}

	claims := ClaimsFromContext(r.Context())
	actual, _ := auth.ParseRole(claims.Role)
	if role != auth.RoleUser {
		if err := auth.Authorize([]auth.Role{auth.RoleSuperadmin}, actual); err != nil {
			respondWithError(w, statusFor(err), err, "Access denied")
			return
		}
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.auditService.RecentLogins(r.Context(), role, limit)
	if err != nil {
		respondWithError(w, statusFor(err), err, "Failed to read login logs")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(entries, "Login logs retrieved"))
}
