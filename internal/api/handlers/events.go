package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/baharkarakas/betsave-core/internal/api/httpx"
	"github.com/baharkarakas/betsave-core/internal/api/validate"
	"github.com/baharkarakas/betsave-core/internal/middleware"
	"github.com/baharkarakas/betsave-core/internal/models"
	repo "github.com/baharkarakas/betsave-core/internal/repository"
	"github.com/baharkarakas/betsave-core/internal/services"
)

// EventsHandler serves the HMAC-authenticated partner routes.
type EventsHandler struct {
	intake  *services.IntakeService
	reports *services.ReportService
}

func NewEventsHandler(intake *services.IntakeService, reports *services.ReportService) *EventsHandler {
	return &EventsHandler{intake: intake, reports: reports}
}

type ingestReq struct {
	EventID string      `json:"eventId"`
	Phone   string      `json:"phone"`
	Amount  json.Number `json:"amount"`
	Type    string      `json:"type"`
}

func (r ingestReq) validate() (services.IngestRequest, validate.Errs) {
	amount, amountErr := validate.PositiveInt("amount", r.Amount)
	errs := (validate.Errs{}).Add(
		validate.Required("eventId", r.EventID),
		validate.MaxLen("eventId", r.EventID, 128),
		validate.Required("phone", r.Phone),
		validate.MaxLen("phone", r.Phone, 32),
		amountErr,
		validate.MaxLen("type", r.Type, 64),
	)
	return services.IngestRequest{
		EventID: strings.TrimSpace(r.EventID),
		Phone:   strings.TrimSpace(r.Phone),
		Amount:  amount,
		Type:    strings.TrimSpace(r.Type),
	}, errs
}

func (h *EventsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	partner, ok := middleware.PartnerFrom(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "AUTH_MISSING", "partner not authenticated", nil)
		return
	}

	var body ingestReq
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid JSON body", nil)
		return
	}
	req, errs := body.validate()
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "validation failed", errs)
		return
	}

	res, err := h.intake.Ingest(r.Context(), partner, req)
	if err != nil {
		slog.Error("ingest event", "partner", partner.Name, "event_id", req.EventID, "err", err,
			"request_id", middleware.RequestIDFrom(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "could not record event", nil)
		return
	}
	status := http.StatusOK
	if res.Status == string(models.EventFailed) {
		status = http.StatusBadRequest
	}
	httpx.WriteJSON(w, status, res)
}

func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	partner, _ := middleware.PartnerFrom(r.Context())
	status, ok := statusParam(w, r)
	if !ok {
		return
	}
	limit, offset := httpx.Page(r)
	evs, err := h.reports.PartnerEvents(r.Context(), partner.Name, status, limit, offset)
	if err != nil {
		serverError(w, r, "list partner events", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": evs, "limit": limit, "offset": offset})
}

func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	partner, _ := middleware.PartnerFrom(r.Context())
	ev, err := h.reports.PartnerEvent(r.Context(), partner.Name, chi.URLParam(r, "eventId"))
	if errors.Is(err, repo.ErrNotFound) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "event not found", nil)
		return
	}
	if err != nil {
		serverError(w, r, "get partner event", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ev)
}

func statusParam(w http.ResponseWriter, r *http.Request) (models.EventStatus, bool) {
	s := models.EventStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if s != "" && !s.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "validation failed",
			validate.Errs{{Field: "status", Msg: "unknown status"}})
		return "", false
	}
	return s, true
}

func serverError(w http.ResponseWriter, r *http.Request, what string, err error) {
	slog.Error(what, "err", err, "request_id", middleware.RequestIDFrom(r.Context()))
	httpx.WriteError(w, http.StatusInternalServerError, "internal_error", "internal error", nil)
}
