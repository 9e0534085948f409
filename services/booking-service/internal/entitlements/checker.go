// Package entitlements enforces subscription-plan limits on reservations.
// The check runs against a locally cached projection of the billing
// service's plan data, kept fresh by the billing event consumer.
package entitlements

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slotsync/slotsync/services/booking-service/internal/reservation"
	"github.com/slotsync/slotsync/services/booking-service/internal/storage"
)

type Checker struct {
	repo   *storage.BookingRepository
	logger *slog.Logger
}

func NewChecker(repo *storage.BookingRepository, logger *slog.Logger) *Checker {
	return &Checker{repo: repo, logger: logger}
}

// CheckReservation admits or rejects one more booking for the business in
// the month of the requested start time. Businesses with no cached
// entitlements are admitted: blocking reservations because a billing event
// has not arrived yet would be worse than a briefly stale limit.
func (c *Checker) CheckReservation(ctx context.Context, businessID string, at time.Time) error {
	ent, ok, err := c.repo.GetBusinessEntitlements(ctx, businessID)
	if err != nil {
		return fmt.Errorf("load entitlements: %w", err)
	}
	if !ok {
		c.logger.DebugContext(ctx, "no cached entitlements, admitting reservation", "business_id", businessID)
		return nil
	}
	if !ent.Active {
		return &reservation.PolicyError{
			Rule:   reservation.RulePlanInactive,
			Detail: "the business subscription is not active",
		}
	}
	if ent.MaxMonthlyBookings <= 0 {
		return nil
	}

	monthStart := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	monthEnd := monthStart.AddDate(0, 1, 0)
	count, err := c.repo.CountActiveByBusinessInRange(ctx, businessID, monthStart, monthEnd)
	if err != nil {
		return fmt.Errorf("count monthly bookings: %w", err)
	}
	if count >= ent.MaxMonthlyBookings {
		return &reservation.PolicyError{
			Rule:   reservation.RulePlanLimit,
			Detail: fmt.Sprintf("the %s plan allows %d bookings per month", ent.Tier, ent.MaxMonthlyBookings),
		}
	}
	return nil
}
