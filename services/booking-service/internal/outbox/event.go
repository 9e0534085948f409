package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/lifecycle"
	"github.com/slotsync/slotsync/services/booking-service/internal/model"
)

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type bookingPayload struct {
	BookingID      string     `json:"booking_id"`
	Code           string     `json:"code"`
	BusinessID     string     `json:"business_id"`
	CustomerID     string     `json:"customer_id"`
	ProfessionalID string     `json:"professional_id"`
	ServiceID      string     `json:"service_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	Status         string     `json:"status"`
	Action         string     `json:"action"`
	ActorID        string     `json:"actor_id,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// BookingEvent converts a committed lifecycle event into its outbox row.
func BookingEvent(ev lifecycle.Event, b model.Booking) (Event, error) {
	payload, err := json.Marshal(bookingPayload{
		BookingID:      b.ID,
		Code:           b.Code,
		BusinessID:     b.BusinessID,
		CustomerID:     b.CustomerID,
		ProfessionalID: b.ProfessionalID,
		ServiceID:      b.ServiceID,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		Status:         string(b.Status),
		Action:         string(ev.Action),
		ActorID:        ev.Actor.ID,
		Reason:         ev.Reason,
		OccurredAt:     ev.At,
	})
	if err != nil {
		return Event{}, fmt.Errorf("marshal booking event: %w", err)
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     ev.Type(),
		Payload:       payload,
	}, nil
}
