package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/internal/service"
	"github.com/utafrali/marketplace/pkg/httputil"
)

// AuthService is the authentication behaviour the auth endpoints need.
type AuthService interface {
	Login(ctx context.Context, input service.LoginInput) (*service.TokenResponse, error)
	RequestPhoneCode(ctx context.Context, input service.PhoneCodeInput) (*service.CodeRequested, error)
	VerifyPhoneCode(ctx context.Context, input service.VerifyPhoneInput) (*service.TokenResponse, error)
}

// AuthHandler handles login and phone verification.
type AuthHandler struct {
	service AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(svc AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, logger: logger}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.service.Login(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: token})
}

// RequestOTP handles POST /api/v1/auth/otp/request
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req service.PhoneCodeInput
	if !decodeJSON(w, r, &req) {
		return
	}

	sent, err := h.service.RequestPhoneCode(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: sent})
}

// VerifyOTP handles POST /api/v1/auth/otp/verify
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req service.VerifyPhoneInput
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.service.VerifyPhoneCode(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: token})
}
