package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicops/booking-console/internal/availability"
	"github.com/clinicops/booking-console/internal/providers"
	"github.com/clinicops/booking-console/pkg/logging"
)

// AvailabilityHandler exposes the availability engine over HTTP.
type AvailabilityHandler struct {
	engine *availability.Engine
	logger *logging.Logger
}

// NewAvailabilityHandler creates the handler.
func NewAvailabilityHandler(engine *availability.Engine, logger *logging.Logger) *AvailabilityHandler {
	if engine == nil {
		panic("handlers: availability engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{engine: engine, logger: logger}
}

// HealthCheck reports liveness.
func (h *AvailabilityHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type slotResponse struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
	Chair    string    `json:"chair,omitempty"`
}

type rangeResponse struct {
	Start time.Time      `json:"start"`
	End   time.Time      `json:"end"`
	Key   string         `json:"key,omitempty"`
	Slots []slotResponse `json:"slots"`
}

type availabilityResponse struct {
	ProviderID string          `json:"provider_id"`
	From       time.Time       `json:"from"`
	To         time.Time       `json:"to"`
	Ranges     []rangeResponse `json:"ranges"`
}

// GetAvailability handles GET /api/providers/{providerID}/availability.
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	from, to, ok := parseWindow(w, r, "from", "to")
	if !ok {
		return
	}

	var opts availability.ComputeOptions
	if raw := r.URL.Query().Get("tolerance_ms"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			writeError(w, http.StatusBadRequest, "tolerance_ms must be a non-negative integer")
			return
		}
		tolerance := time.Duration(ms) * time.Millisecond
		opts.Tolerance = &tolerance
	}
	if r.URL.Query().Get("group_by") == "none" {
		opts.NoGrouping = true
	}

	ranges, err := h.engine.ComputeAvailability(r.Context(), providerID, from, to, &opts)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	resp := availabilityResponse{
		ProviderID: providerID,
		From:       from,
		To:         to,
		Ranges:     make([]rangeResponse, 0, len(ranges)),
	}
	for _, rg := range ranges {
		out := rangeResponse{Start: rg.StartUTC, End: rg.EndUTC, Key: rg.Key}
		for _, s := range rg.Slots {
			out.Slots = append(out.Slots, slotResponse{
				Start:    s.StartUTC,
				End:      s.EndUTC,
				Location: s.Location,
				Chair:    s.Chair,
			})
		}
		resp.Ranges = append(resp.Ranges, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClassifyWindow handles GET /api/providers/{providerID}/availability/classify.
func (h *AvailabilityHandler) ClassifyWindow(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	from, to, ok := parseWindow(w, r, "from", "to")
	if !ok {
		return
	}
	candFrom, candTo, ok := parseWindow(w, r, "candidate_from", "candidate_to")
	if !ok {
		return
	}

	class, err := h.engine.ClassifyWindow(r.Context(), providerID, from, to, candFrom, candTo)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"provider_id":    providerID,
		"classification": string(class),
	})
}

type suggestRequest struct {
	Skill              string    `json:"skill"`
	From               time.Time `json:"from"`
	To                 time.Time `json:"to"`
	DurationMin        int       `json:"duration_min"`
	OnlyFits           bool      `json:"only_fits"`
	AllowPartial       bool      `json:"allow_partial"`
	IncludeUnavailable bool      `json:"include_unavailable"`
}

type suggestionResponse struct {
	ProviderID   string `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	Fits         bool   `json:"fits"`
	Partial      bool   `json:"partial"`
	FreeMinutes  int    `json:"free_minutes"`
	Score        int    `json:"score"`
}

// SuggestProviders handles POST /api/suggestions.
func (h *AvailabilityHandler) SuggestProviders(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Skill == "" {
		writeError(w, http.StatusBadRequest, "skill is required")
		return
	}

	suggestions, err := h.engine.SuggestProviders(r.Context(), availability.SuggestQuery{
		Skill:              req.Skill,
		FromUTC:            req.From.UTC(),
		ToUTC:              req.To.UTC(),
		Duration:           time.Duration(req.DurationMin) * time.Minute,
		OnlyFits:           req.OnlyFits,
		AllowPartial:       req.AllowPartial,
		IncludeUnavailable: req.IncludeUnavailable,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	out := make([]suggestionResponse, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, suggestionResponse{
			ProviderID:   s.Provider.ID,
			ProviderName: s.Provider.Name,
			Fits:         s.Fits,
			Partial:      s.Partial,
			FreeMinutes:  s.FreeMinutes,
			Score:        s.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": out})
}

type reserveRequest struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	AppointmentID string    `json:"appointment_id"`
}

// ReserveBooking handles POST /api/providers/{providerID}/bookings.
func (h *AvailabilityHandler) ReserveBooking(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id is required")
		return
	}

	assignment, err := h.engine.ReserveBooking(r.Context(), providerID, req.From.UTC(), req.To.UTC(), req.AppointmentID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"assignment_id":  assignment.ID,
		"provider_id":    assignment.ProviderID,
		"appointment_id": assignment.AppointmentID,
		"slot_id":        assignment.SlotID,
		"start":          assignment.StartUTC,
		"end":            assignment.EndUTC,
	})
}

// CancelBooking handles DELETE /api/providers/{providerID}/bookings/{assignmentID}.
func (h *AvailabilityHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")
	assignmentID := chi.URLParam(r, "assignmentID")

	if err := h.engine.CancelBooking(r.Context(), providerID, assignmentID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeEngineError maps engine errors onto HTTP statuses. Read-path errors
// pass through unchanged; user-facing messaging is the frontend's concern.
func (h *AvailabilityHandler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	if conflict, ok := availability.AsConflict(err); ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":          "booking conflict",
			"conflict_with":  string(conflict.Source),
			"conflict_start": conflict.StartUTC,
			"conflict_end":   conflict.EndUTC,
			"detail":         conflict.Detail,
		})
		return
	}

	var tzErr *availability.TimezoneError
	switch {
	case errors.Is(err, availability.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, availability.ErrProviderNotFound),
		errors.Is(err, availability.ErrScheduleNotFound),
		errors.Is(err, providers.ErrAssignmentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, availability.ErrProviderInactive):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &tzErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("availability request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseWindow(w http.ResponseWriter, r *http.Request, fromParam, toParam string) (time.Time, time.Time, bool) {
	from, err := time.Parse(time.RFC3339, r.URL.Query().Get(fromParam))
	if err != nil {
		writeError(w, http.StatusBadRequest, fromParam+" must be RFC 3339")
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get(toParam))
	if err != nil {
		writeError(w, http.StatusBadRequest, toParam+" must be RFC 3339")
		return time.Time{}, time.Time{}, false
	}
	return from.UTC(), to.UTC(), true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
