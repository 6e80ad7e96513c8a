package user

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gharnest/gharnest/internal/api"
	"github.com/gharnest/gharnest/internal/api/auth"
	"github.com/gharnest/gharnest/internal/types"
)

// UserHandler wires the HTTP surface of profile reads, profile updates and
// admin role management.
type UserHandler struct {
	service  UserService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewUserHandler(service UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: auth.NewValidator(),
		logger:   logger,
	}
}

// GetProfile handles GET /users/{userID}. Authentication is optional: the
// owner sees full contact details, everyone else gets the privacy-filtered
// view.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var viewerID *uuid.UUID
	if id, ok := auth.GetUserIDFromContext(r.Context()); ok {
		viewerID = &id
	}

	profile, err := h.service.GetProfile(r.Context(), userID, viewerID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

// UpdateProfile handles PATCH /users/{userID}. Users may only edit their own
// profile.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	callerID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}
	if callerID != userID {
		api.ErrorResponse(w, r, http.StatusForbidden, "Cannot modify another user's profile")
		return
	}

	var params UpdateProfileParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg, ok := h.checkRequest(params); !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, msg)
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, params)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, profile)
}

// AddRole handles POST /users/{userID}/roles. Admin only, enforced by the
// router.
func (h *UserHandler) AddRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}

	var req RoleRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg, ok := h.checkRequest(req); !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, msg)
		return
	}

	roles, err := h.service.AddRole(r.Context(), userID, req.Role)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, RolesResponse{
		Message: fmt.Sprintf("Role %q granted", req.Role),
		Roles:   roles,
	})
}

// RemoveRole handles DELETE /users/{userID}/roles/{role}. Admin only.
func (h *UserHandler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	role := chi.URLParam(r, "role")
	if role == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "role is required")
		return
	}

	roles, err := h.service.RemoveRole(r.Context(), userID, types.Role(role))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, RolesResponse{
		Message: fmt.Sprintf("Role %q revoked", role),
		Roles:   roles,
	})
}

func (h *UserHandler) pathUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "userID")
	id, err := uuid.Parse(raw)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "userID must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *UserHandler) checkRequest(req interface{}) (string, bool) {
	err := h.validate.Struct(req)
	if err == nil {
		return "", true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "phone":
			return "phone must be a valid phone number", false
		default:
			return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag()), false
		}
	}
	return "invalid request", false
}

func (h *UserHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := api.StatusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Internal error handling user request", slog.Any("error", err))
		api.ErrorResponse(w, r, status, "Internal server error")
		return
	}
	api.ErrorResponse(w, r, status, err.Error())
}
