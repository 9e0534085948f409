package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// BusinessEntitlements is the locally cached projection of the billing
// service's plan limits, refreshed from billing.subscription events.
type BusinessEntitlements struct {
	BusinessID          string
	Tier                string
	MaxMonthlyBookings  int // 0 means unlimited
	MaxProfessionals    int // 0 means unlimited
	Active              bool
	UpdatedAt           time.Time
}

func (r *BookingRepository) UpsertBusinessEntitlements(ctx context.Context, tx pgx.Tx, ent BusinessEntitlements) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO business_entitlements (business_id, tier, max_monthly_bookings, max_professionals, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id)
		DO UPDATE SET tier = EXCLUDED.tier,
		              max_monthly_bookings = EXCLUDED.max_monthly_bookings,
		              max_professionals = EXCLUDED.max_professionals,
		              active = EXCLUDED.active,
		              updated_at = now()
	`, ent.BusinessID, ent.Tier, ent.MaxMonthlyBookings, ent.MaxProfessionals, ent.Active)
	return err
}

func (r *BookingRepository) GetBusinessEntitlements(ctx context.Context, businessID string) (BusinessEntitlements, bool, error) {
	var ent BusinessEntitlements
	err := r.pool.QueryRow(ctx, `
		SELECT business_id::text, tier, max_monthly_bookings, max_professionals, active, updated_at
		FROM business_entitlements
		WHERE business_id = $1
	`, businessID).Scan(&ent.BusinessID, &ent.Tier, &ent.MaxMonthlyBookings, &ent.MaxProfessionals, &ent.Active, &ent.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return BusinessEntitlements{}, false, nil
		}
		return BusinessEntitlements{}, false, err
	}
	return ent, true, nil
}
