// internal/api/handlers/auth.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/baharkarakas/betsave-core/internal/api/httpx"
	"github.com/baharkarakas/betsave-core/internal/api/validate"
	"github.com/baharkarakas/betsave-core/internal/services"
)

type AuthHandler struct {
	svc *services.AdminAuthService
}

func NewAuthHandler(svc *services.AdminAuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	if errs := (validate.Errs{}).Add(
		validate.Required("email", req.Email),
		validate.Required("password", req.Password),
	); len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "validation failed", errs)
		return
	}

	pair, err := h.svc.Login(req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials", nil)
		return
	}
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not issue tokens", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "refresh_token required", nil)
		return
	}
	pair, err := h.svc.Refresh(req.RefreshToken)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, pair)
}
