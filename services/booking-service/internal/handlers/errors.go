package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slotsync/slotsync/services/booking-service/internal/interval"
	"github.com/slotsync/slotsync/services/booking-service/internal/lifecycle"
	"github.com/slotsync/slotsync/services/booking-service/internal/reservation"
	"github.com/slotsync/slotsync/services/booking-service/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Rule  string `json:"rule,omitempty"`
}

// mapEngineError maps engine errors onto HTTP statuses: validation to
// 400, policy and cancellation-window violations to 422, conflicts and
// illegal transitions to 409, unknown bookings to 404.
func mapEngineError(err error) (int, errorResponse) {
	var (
		polErr *reservation.PolicyError
		winErr *lifecycle.CancellationWindowError
		trErr  *lifecycle.TransitionError
	)
	switch {
	case errors.Is(err, reservation.ErrSlotConflict):
		return http.StatusConflict, errorResponse{Error: reservation.ErrSlotConflict.Error()}
	case errors.Is(err, reservation.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "booking not found"}
	case errors.As(err, &winErr):
		return http.StatusUnprocessableEntity, errorResponse{Error: winErr.Error(), Rule: "cancellation_window"}
	case errors.As(err, &polErr):
		return http.StatusUnprocessableEntity, errorResponse{Error: polErr.Detail, Rule: polErr.Rule}
	case errors.As(err, &trErr):
		return http.StatusConflict, errorResponse{Error: trErr.Error()}
	case errors.Is(err, storage.ErrStaleBooking):
		return http.StatusConflict, errorResponse{Error: "booking was modified concurrently, reload and retry"}
	case errors.Is(err, interval.ErrInvalidInterval):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	status, resp := mapEngineError(err)
	writeError(w, status, resp.Error, resp.Rule)
}

func writeError(w http.ResponseWriter, status int, msg, rule string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Rule: rule})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
