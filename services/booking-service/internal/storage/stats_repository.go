package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/slotsync/slotsync/services/booking-service/internal/lifecycle"
)

// BumpCustomerStats maintains the per-customer booking counters that
// power the business dashboard. Counters are updated in the same
// transaction as the transition they reflect.
func (r *BookingRepository) BumpCustomerStats(ctx context.Context, tx pgx.Tx, businessID, customerID string, action lifecycle.Action) error {
	var column string
	switch action {
	case lifecycle.ActionReserve:
		column = "total_bookings"
	case lifecycle.ActionComplete:
		column = "completed_bookings"
	case lifecycle.ActionCancel:
		column = "cancelled_bookings"
	case lifecycle.ActionNoShow:
		column = "no_show_bookings"
	default:
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO customer_stats (business_id, customer_id, `+column+`)
		VALUES ($1, $2, 1)
		ON CONFLICT (business_id, customer_id)
		DO UPDATE SET `+column+` = customer_stats.`+column+` + 1,
		              updated_at = now()
	`, businessID, customerID)
	return err
}

type CustomerStats struct {
	BusinessID        string
	CustomerID        string
	TotalBookings     int
	CompletedBookings int
	CancelledBookings int
	NoShowBookings    int
}

func (r *BookingRepository) GetCustomerStats(ctx context.Context, businessID, customerID string) (CustomerStats, error) {
	stats := CustomerStats{BusinessID: businessID, CustomerID: customerID}
	err := r.pool.QueryRow(ctx, `
		SELECT total_bookings, completed_bookings, cancelled_bookings, no_show_bookings
		FROM customer_stats
		WHERE business_id = $1 AND customer_id = $2
	`, businessID, customerID).Scan(
		&stats.TotalBookings,
		&stats.CompletedBookings,
		&stats.CancelledBookings,
		&stats.NoShowBookings,
	)
	if err != nil {
		if IsNotFound(err) {
			return stats, nil
		}
		return CustomerStats{}, err
	}
	return stats, nil
}
