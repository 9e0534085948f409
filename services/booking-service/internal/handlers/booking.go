// Package handlers exposes the reservation engine over HTTP.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/lifecycle"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
	"github.com/slotsync/slotsync/services/booking-service/internal/reservation"
	"github.com/slotsync/slotsync/services/booking-service/internal/storage"
)

type BookingHandler struct {
	coord   *reservation.Coordinator
	manager *lifecycle.Manager
	repo    *storage.BookingRepository
	logger  *slog.Logger
}

func NewBookingHandler(coord *reservation.Coordinator, manager *lifecycle.Manager, repo *storage.BookingRepository, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{coord: coord, manager: manager, repo: repo, logger: logger}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/slots", h.Slots)
	mux.HandleFunc("/api/v1/bookings", h.bookings)
	mux.HandleFunc("/api/v1/bookings/transition", h.Transition)
	mux.HandleFunc("/api/v1/bookings/reschedule", h.Reschedule)
	mux.HandleFunc("/api/v1/customers/stats", h.CustomerStats)
}

func (h *BookingHandler) bookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Reserve(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type bookingView struct {
	BookingID      string `json:"booking_id"`
	Code           string `json:"code"`
	BusinessID     string `json:"business_id"`
	CustomerID     string `json:"customer_id"`
	ProfessionalID string `json:"professional_id"`
	ServiceID      string `json:"service_id"`
	LocationID     string `json:"location_id,omitempty"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	Status         string `json:"status"`
	Notes          string `json:"notes,omitempty"`
	ConfirmedAt    string `json:"confirmed_at,omitempty"`
	CancelledAt    string `json:"cancelled_at,omitempty"`
	CancelReason   string `json:"cancel_reason,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func viewOf(b model.Booking) bookingView {
	v := bookingView{
		BookingID:      b.ID,
		Code:           b.Code,
		BusinessID:     b.BusinessID,
		CustomerID:     b.CustomerID,
		ProfessionalID: b.ProfessionalID,
		ServiceID:      b.ServiceID,
		LocationID:     b.LocationID,
		StartTime:      b.StartTime.UTC().Format(time.RFC3339),
		EndTime:        b.EndTime.UTC().Format(time.RFC3339),
		Status:         string(b.Status),
		Notes:          b.Notes,
		CancelReason:   b.CancelReason,
		CreatedAt:      b.Audit.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.ConfirmedAt != nil {
		v.ConfirmedAt = b.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	if b.CancelledAt != nil {
		v.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return v
}

type slotItem struct {
	StartTime string `json:"start_time"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	businessID := strings.TrimSpace(q.Get("business_id"))
	professionalID := strings.TrimSpace(q.Get("professional_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	fromStr := strings.TrimSpace(q.Get("from"))
	toStr := strings.TrimSpace(q.Get("to"))
	if businessID == "" || professionalID == "" || serviceID == "" || fromStr == "" {
		http.Error(w, "business_id, professional_id, service_id, and from are required", http.StatusBadRequest)
		return
	}
	if toStr == "" {
		toStr = fromStr
	}
	from, err := time.ParseInLocation("2006-01-02", fromStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid from date", http.StatusBadRequest)
		return
	}
	to, err := time.ParseInLocation("2006-01-02", toStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid to date", http.StatusBadRequest)
		return
	}
	if to.Sub(from) > 31*24*time.Hour {
		http.Error(w, "date range too large", http.StatusBadRequest)
		return
	}

	seq, err := h.coord.ListSlots(r.Context(), reservation.SlotQuery{
		BusinessID:     businessID,
		ProfessionalID: professionalID,
		ServiceID:      serviceID,
		From:           from,
		To:             to,
	})
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "unknown service", http.StatusNotFound)
			return
		}
		writeEngineError(w, err)
		return
	}

	items := []slotItem{}
	for s := range seq {
		items = append(items, slotItem{StartTime: s.UTC().Format(time.RFC3339)})
	}
	writeJSON(w, http.StatusOK, items)
}

type reserveRequest struct {
	BusinessID     string `json:"business_id"`
	ProfessionalID string `json:"professional_id"`
	ServiceID      string `json:"service_id"`
	LocationID     string `json:"location_id"`
	StartTime      string `json:"start_time"`
	Notes          string `json:"notes"`
}

func (h *BookingHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, done, err := h.claimIdempotencyKey(ctx, req.BusinessID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to claim idempotency key", http.StatusInternalServerError)
			return
		}
		if done {
			if rec.StatusCode == 0 {
				writeError(w, http.StatusConflict, "a request with this idempotency key is in flight", "")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	b, reserveErr := h.coord.Reserve(ctx, reservation.ReserveRequest{
		BusinessID:     req.BusinessID,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.ServiceID,
		CustomerID:     claims.Sub,
		LocationID:     req.LocationID,
		Start:          start,
		Notes:          req.Notes,
	})
	if reserveErr != nil {
		status, resp := mapEngineError(reserveErr)
		if storage.IsNotFound(reserveErr) {
			status, resp = http.StatusNotFound, errorResponse{Error: "unknown service"}
		}
		// Store definitive outcomes so a retry with the same key replays
		// them; transient failures stay unfinalized and retryable.
		if idempotencyKey != "" && status < http.StatusInternalServerError {
			if body, err := json.Marshal(resp); err == nil {
				if err := h.finalizeIdempotency(ctx, req.BusinessID, idempotencyKey, "", status, body); err != nil {
					h.logger.Error("idempotency finalize failed", "err", err)
				}
			}
		}
		writeError(w, status, resp.Error, resp.Rule)
		return
	}

	body, err := json.Marshal(viewOf(b))
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.finalizeIdempotency(ctx, req.BusinessID, idempotencyKey, b.ID, http.StatusCreated, body); err != nil {
			h.logger.Error("idempotency finalize failed", "err", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

type transitionRequest struct {
	BookingID string `json:"booking_id"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
}

func (h *BookingHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := claimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}
	action, ok := lifecycle.ParseAction(strings.TrimSpace(req.Action))
	if !ok {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	// Operational transitions are staff-only; customers may cancel their
	// own booking, subject to the notice window.
	actor := lifecycle.Actor{ID: claims.Sub, Staff: claims.IsStaff()}
	if !actor.Staff && action != lifecycle.ActionCancel {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	b, err := h.manager.Transition(r.Context(), req.BookingID, action, actor, strings.TrimSpace(req.Reason))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(b))
}

type rescheduleRequest struct {
	BookingID string `json:"booking_id"`
	StartTime string `json:"start_time"`
	Notes     string `json:"notes"`
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := claimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	actor := lifecycle.Actor{ID: claims.Sub, Staff: claims.IsStaff()}
	replacement, err := h.coord.Reschedule(r.Context(), req.BookingID, start, actor, strings.TrimSpace(req.Notes))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(replacement))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	businessID := strings.TrimSpace(q.Get("business_id"))
	if businessID == "" {
		businessID = claims.BusinessID
	}
	if businessID == "" {
		http.Error(w, "business_id required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var (
		bookings []model.Booking
		err      error
	)
	if customerID := strings.TrimSpace(q.Get("customer_id")); customerID != "" {
		bookings, err = h.repo.ListByCustomer(r.Context(), businessID, customerID, limit)
	} else {
		var status model.BookingStatus
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status, err = model.ParseBookingStatus(raw)
			if err != nil {
				http.Error(w, "unknown status", http.StatusBadRequest)
				return
			}
		}
		bookings, err = h.repo.ListByBusiness(r.Context(), businessID, status, limit)
	}
	if err != nil {
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}

	items := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, viewOf(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) CustomerStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := claimsFromContext(r.Context())
	if claims == nil || !claims.IsStaff() {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	customerID := strings.TrimSpace(r.URL.Query().Get("customer_id"))
	if customerID == "" {
		http.Error(w, "customer_id required", http.StatusBadRequest)
		return
	}
	stats, err := h.repo.GetCustomerStats(r.Context(), claims.BusinessID, customerID)
	if err != nil {
		http.Error(w, "failed to load customer stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"business_id":        stats.BusinessID,
		"customer_id":        stats.CustomerID,
		"total_bookings":     stats.TotalBookings,
		"completed_bookings": stats.CompletedBookings,
		"cancelled_bookings": stats.CancelledBookings,
		"no_show_bookings":   stats.NoShowBookings,
	})
}
