package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/baharkarakas/betsave-core/internal/api/httpx"
	"github.com/baharkarakas/betsave-core/internal/api/validate"
	"github.com/baharkarakas/betsave-core/internal/models"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
	"github.com/baharkarakas/betsave-core/internal/services"
)

// AdminHandler serves the read-only dashboard routes.
type AdminHandler struct {
	reports *services.ReportService
}

func NewAdminHandler(reports *services.ReportService) *AdminHandler {
	return &AdminHandler{reports: reports}
}

func (h *AdminHandler) Events(w http.ResponseWriter, r *http.Request) {
	status, ok := statusParam(w, r)
	if !ok {
		return
	}
	limit, offset := httpx.Page(r)
	q := r.URL.Query()
	evs, err := h.reports.Events(r.Context(), models.EventFilter{
		PartnerName: q.Get("partner"),
		UserID:      q.Get("user_id"),
		Status:      status,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		serverError(w, r, "list events", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": evs, "limit": limit, "offset": offset})
}

func (h *AdminHandler) Event(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, perr := uuid.Parse(id); perr != nil {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "event not found", nil)
		return
	}
	d, err := h.reports.EventDetail(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "event not found", nil)
		return
	}
	if err != nil {
		serverError(w, r, "get event", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, d)
}

func (h *AdminHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if f := validate.Required("user_id", userID); f != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "validation failed", validate.Errs{*f})
		return
	}
	limit, offset := httpx.Page(r)
	entries, err := h.reports.Ledger(r.Context(), userID, limit, offset)
	if err != nil {
		serverError(w, r, "list ledger", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": entries, "limit": limit, "offset": offset})
}

func (h *AdminHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	wallet, err := h.reports.Wallet(r.Context(), chi.URLParam(r, "userId"))
	if errors.Is(err, repo.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "wallet not found", nil)
		return
	}
	if err != nil {
		serverError(w, r, "get wallet", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wallet)
}

func (h *AdminHandler) WebhookFailures(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Page(r)
	fs, err := h.reports.WebhookFailures(r.Context(), limit, offset)
	if err != nil {
		serverError(w, r, "list webhook failures", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": fs, "limit": limit, "offset": offset})
}

func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.reports.Overview(r.Context())
	if err != nil {
		serverError(w, r, "overview", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ov)
}
