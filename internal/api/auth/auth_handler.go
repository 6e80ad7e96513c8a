package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/gharnest/gharnest/internal/api"
)

// AuthHandler wires the HTTP surface of the auth flows.
type AuthHandler struct {
	service  AuthService
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAuthHandler(service AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		validate: NewValidator(),
		logger:   logger,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg, ok := h.checkRequest(req); !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, msg)
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, user)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg, ok := h.checkRequest(req); !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, msg)
		return
	}

	tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, tokens)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg, ok := h.checkRequest(req); !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, msg)
		return
	}

	tokens, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, tokens)
}

// Logout handles POST /auth/logout. Tokens are stateless, so logout is a
// client-side contract: the server holds no session to destroy.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Successfully logged out",
	})
}

// RequestPasswordReset handles POST /auth/password-reset-request. The
// response is the same whether or not the email exists.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg, ok := h.checkRequest(req); !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, msg)
		return
	}

	token, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"success": true,
		"message": "If the email exists, a password reset link has been sent",
	}
	// Returned for the development flow only; real deployments deliver the
	// token via the notifier and should drop this field.
	if token != "" {
		resp["token"] = token
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// ConfirmPasswordReset handles POST /auth/password-reset-confirm.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetConfirmRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg, ok := h.checkRequest(req); !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, msg)
		return
	}

	if err := h.service.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Password successfully reset",
	})
}

// ChangePassword handles PUT /auth/change-password for the authenticated user.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if msg, ok := h.checkRequest(req); !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, msg)
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		h.respondError(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, api.Response{
		Success: true,
		Message: "Password successfully changed",
	})
}

// checkRequest validates a request DTO and renders the first violation as a
// readable message.
func (h *AuthHandler) checkRequest(req interface{}) (string, bool) {
	err := h.validate.Struct(req)
	if err == nil {
		return "", true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "strongpass":
			return "password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a digit and a special character", false
		case "phone":
			return "phone must be a valid phone number", false
		case "email":
			return fmt.Sprintf("%s must be a valid email address", field), false
		default:
			return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag()), false
		}
	}
	return "invalid request", false
}

func (h *AuthHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := api.StatusForError(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Internal error handling auth request", slog.Any("error", err))
		api.ErrorResponse(w, r, status, "Internal server error")
		return
	}
	api.ErrorResponse(w, r, status, err.Error())
}
